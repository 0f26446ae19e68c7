// Package llm wraps the language and embedding models behind schema-constrained calls.
package llm

import (
	"context"
	"encoding/json"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/adapter"
	"github.com/m-mizutani/medgraph/pkg/model"
	"google.golang.org/genai"
)

// DefaultDimensionality is the embedding size used when none is configured.
const DefaultDimensionality = 768

// Client is the models capability shared by extraction, evaluation and embedding.
type Client struct {
	gemini         adapter.Gemini
	dimensionality int
	temperature    float32
}

type Option func(*Client)

func WithDimensionality(n int) Option {
	return func(c *Client) {
		c.dimensionality = n
	}
}

func WithTemperature(t float32) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

func New(gemini adapter.Gemini, opts ...Option) *Client {
	c := &Client{
		gemini:         gemini,
		dimensionality: DefaultDimensionality,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed embeds "{name}: {description}".
func (c *Client) Embed(ctx context.Context, name, description string) (firestore.Vector32, error) {
	return c.EmbedText(ctx, model.EmbeddingText(name, description))
}

func (c *Client) EmbedText(ctx context.Context, text string) (firestore.Vector32, error) {
	vec, err := c.gemini.Embedding(ctx, text, c.dimensionality)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed text", goerr.V("text", text))
	}
	return vec, nil
}

// Generate asks the language model for a JSON object of type T under a fixed instruction.
// Output that is not valid JSON or violates the schema of T fails with model.ErrExtractionSchema.
func Generate[T any](ctx context.Context, c *Client, instruction, input string) (*T, error) {
	schema, err := schemaFor[T]()
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, ""),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema.genai,
		Temperature:       genai.Ptr(c.temperature),
	}
	contents := []*genai.Content{
		genai.NewContentFromText(input, genai.RoleUser),
	}

	resp, err := c.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}

	text := responseText(resp)
	if text == "" {
		return nil, goerr.Wrap(model.ErrEmptyResponse, "no text in model response")
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, goerr.Wrap(model.ErrExtractionSchema, "model output is not valid JSON",
			goerr.V("output", text), goerr.V("cause", err.Error()))
	}
	if err := schema.resolved.Validate(raw); err != nil {
		return nil, goerr.Wrap(model.ErrExtractionSchema, "model output violates schema",
			goerr.V("output", text), goerr.V("cause", err.Error()))
	}

	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, goerr.Wrap(model.ErrExtractionSchema, "failed to decode model output",
			goerr.V("output", text), goerr.V("cause", err.Error()))
	}
	return &out, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}
