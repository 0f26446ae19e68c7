package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// VectorTable is a deterministic embedder for tests. A text "{name}: {description}" is
// embedded as the vector registered for name.
type VectorTable map[string][]float32

func (v VectorTable) Embedding(ctx context.Context, text string, dimensionality int) ([]float32, error) {
	name := text
	if i := strings.Index(text, ":"); i >= 0 {
		name = text[:i]
	}
	vec, ok := v[name]
	if !ok {
		return nil, goerr.New("no vector registered", goerr.V("name", name))
	}
	return vec, nil
}

// Router answers GenerateContent by the first route whose key appears in the system
// instruction. Every call is recorded.
type Router struct {
	Routes map[string]func(input string) (string, error)

	mu    sync.Mutex
	calls []Call
}

type Call struct {
	Instruction string
	Input       string
}

func (r *Router) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	instruction := SystemInstruction(config)
	input := UserText(contents)

	r.mu.Lock()
	r.calls = append(r.calls, Call{Instruction: instruction, Input: input})
	r.mu.Unlock()

	for key, route := range r.Routes {
		if strings.Contains(instruction, key) {
			text, err := route(input)
			if err != nil {
				return nil, err
			}
			return TextResponse(text), nil
		}
	}
	return nil, goerr.New("no route for instruction", goerr.V("instruction", instruction))
}

// Calls returns recorded calls whose instruction contains key, in call order.
func (r *Router) Calls(key string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Call
	for _, c := range r.calls {
		if strings.Contains(c.Instruction, key) {
			result = append(result, c)
		}
	}
	return result
}

// NewModels combines a router and a vector table into a Gemini mock.
func NewModels(router *Router, vectors VectorTable) *Gemini {
	return &Gemini{
		GenerateContentFunc: router.GenerateContent,
		EmbeddingFunc:       vectors.Embedding,
	}
}
