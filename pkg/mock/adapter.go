// Package mock provides function-field implementations of adapter interfaces for tests.
package mock

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/medgraph/pkg/adapter"
	"github.com/m-mizutani/medgraph/pkg/model"
	"google.golang.org/genai"
)

type Gemini struct {
	GenerateContentFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbeddingFunc       func(ctx context.Context, text string, dimensionality int) ([]float32, error)
}

var _ adapter.Gemini = &Gemini{}

func (m *Gemini) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.GenerateContentFunc == nil {
		return nil, goerr.New("GenerateContentFunc is not set")
	}
	return m.GenerateContentFunc(ctx, contents, config)
}

func (m *Gemini) Embedding(ctx context.Context, text string, dimensionality int) ([]float32, error) {
	if m.EmbeddingFunc == nil {
		return nil, goerr.New("EmbeddingFunc is not set")
	}
	return m.EmbeddingFunc(ctx, text, dimensionality)
}

// TextResponse builds a single-candidate response carrying text.
func TextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

// SystemInstruction extracts the system instruction text of a generate config.
func SystemInstruction(config *genai.GenerateContentConfig) string {
	if config == nil || config.SystemInstruction == nil {
		return ""
	}
	var buf bytes.Buffer
	for _, part := range config.SystemInstruction.Parts {
		buf.WriteString(part.Text)
	}
	return buf.String()
}

// UserText concatenates the text parts of contents.
func UserText(contents []*genai.Content) string {
	var buf bytes.Buffer
	for _, c := range contents {
		for _, part := range c.Parts {
			buf.WriteString(part.Text)
		}
	}
	return buf.String()
}

type BigQuery struct {
	DryRunFunc         func(ctx context.Context, query string) (int64, error)
	QueryFunc          func(ctx context.Context, query string) (string, error)
	GetQueryResultFunc func(ctx context.Context, jobID string) ([]map[string]any, error)
}

var _ adapter.BigQuery = &BigQuery{}

func (m *BigQuery) DryRun(ctx context.Context, query string) (int64, error) {
	if m.DryRunFunc == nil {
		return 0, nil
	}
	return m.DryRunFunc(ctx, query)
}

func (m *BigQuery) Query(ctx context.Context, query string) (string, error) {
	if m.QueryFunc == nil {
		return "", goerr.New("QueryFunc is not set")
	}
	return m.QueryFunc(ctx, query)
}

func (m *BigQuery) GetQueryResult(ctx context.Context, jobID string) ([]map[string]any, error) {
	if m.GetQueryResultFunc == nil {
		return nil, goerr.New("GetQueryResultFunc is not set")
	}
	return m.GetQueryResultFunc(ctx, jobID)
}

// Storage is an in-memory adapter.Storage
type Storage struct {
	mu   sync.Mutex
	data map[string][]byte
}

var _ adapter.Storage = &Storage{}

func NewStorage() *Storage {
	return &Storage{data: make(map[string][]byte)}
}

func (m *Storage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &storageWriter{storage: m, key: key}, nil
}

func (m *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "object not found", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Keys returns stored object keys.
func (m *Storage) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

type storageWriter struct {
	bytes.Buffer
	storage *Storage
	key     string
}

func (w *storageWriter) Close() error {
	w.storage.mu.Lock()
	defer w.storage.mu.Unlock()
	w.storage.data[w.key] = w.Bytes()
	return nil
}
