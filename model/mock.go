package model

import (
	"context"
	"fmt"
	"strings"
)

// MockModel is a lightweight in‑memory Model useful for tests & examples.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:     name,
			Provider: "mock",
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// AddContains registers a canned completion matched by substring of the input.
// Exact AddResponse matches take precedence.
func (m *MockModel) AddContains(substr, response string) {
	m.responses["~"+substr] = response
}

func (m *MockModel) lookup(input string) string {
	if full, ok := m.responses[input]; ok {
		return full
	}
	for k, v := range m.responses {
		if strings.HasPrefix(k, "~") && strings.Contains(input, k[1:]) {
			return v
		}
	}
	return ""
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		inputText := req.Messages[len(req.Messages)-1].Content
		full := m.lookup(inputText)
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: string(r)}:
				}
			}
		}
		respCh <- Response{
			Partial:      false,
			Content:      full,
			FinishReason: "stop",
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// MockEmbedder produces deterministic vectors derived from the input text.
// Useful for exercising the vector index without a provider.
type MockEmbedder struct {
	Dim int
}

// NewMockEmbedder constructs a MockEmbedder with the given dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	if dim <= 0 {
		dim = 8
	}
	return &MockEmbedder{Dim: dim}
}

// EmbedQuery implements Embedder.
func (e *MockEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

// EmbedDocuments implements Embedder.
func (e *MockEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *MockEmbedder) embed(text string) []float32 {
	v := make([]float32, e.Dim)
	for i, r := range text {
		v[i%e.Dim] += float32(r) / 1000.0
	}
	return v
}

var _ Model = (*MockModel)(nil)
var _ Embedder = (*MockEmbedder)(nil)
