package model

import (
	"context"
	"testing"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeText(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("hello", "hi there")

	out, err := InvokeText(context.Background(), m, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)
}

func TestInvokeFallbackResponse(t *testing.T) {
	m := NewMockModel("test-model")

	out, err := InvokeText(context.Background(), m, "unseen prompt")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: unseen prompt", out)
}

func TestInvokeStreamingAccumulates(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddResponse("stream me", "chunked answer")

	req := Request{
		Messages: []core.Message{core.NewMessage(core.RoleUser, "stream me")},
		Stream:   true,
	}
	respCh, errCh := m.Generate(context.Background(), req)

	var partials int
	var final string
	for resp := range respCh {
		if resp.Partial {
			partials++
			continue
		}
		final = resp.Content
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, len("chunked answer"), partials)
	assert.Equal(t, "chunked answer", final)
}

func TestInvokeEmptyMessages(t *testing.T) {
	m := NewMockModel("test-model")

	_, err := Invoke(context.Background(), m, Request{})
	assert.Error(t, err)
}

func TestInvokeContains(t *testing.T) {
	m := NewMockModel("test-model")
	m.AddContains("weather", `{"needs_tool": false}`)

	out, err := InvokeText(context.Background(), m, "what is the weather like?")
	require.NoError(t, err)
	assert.Equal(t, `{"needs_tool": false}`, out)
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(8)

	a, err := e.EmbedQuery(context.Background(), "golang")
	require.NoError(t, err)
	b, err := e.EmbedQuery(context.Background(), "golang")
	require.NoError(t, err)

	assert.Len(t, a, 8)
	assert.Equal(t, a, b)

	docs, err := e.EmbedDocuments(context.Background(), []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.NotEqual(t, docs[0], docs[1])
}
