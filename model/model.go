package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/dialogmesh/core"
)

// Request captures the normalized model input produced by the workflow and
// supervisor layers. Instructions becomes the provider's system prompt;
// Messages carries the conversation in order.
type Request struct {
	Instructions string         `json:"instructions,omitempty"`
	Messages     []core.Message `json:"messages"`
	Stream       bool           `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	Partial      bool        `json:"partial"`
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"` // "stop", "length", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface required to drive generation. Implementations
// must close both channels when generation ends and respect ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Invoke drains a Generate call into the final response text. It accepts the
// structured message list form of the invocation contract.
func Invoke(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)

	var final strings.Builder
	var sawFinal bool
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case err, ok := <-errCh:
			if ok && err != nil {
				return "", err
			}
			errCh = nil
		case resp, ok := <-respCh:
			if !ok {
				if errCh != nil {
					if err, ok := <-errCh; ok && err != nil {
						return "", err
					}
				}
				if !sawFinal && final.Len() == 0 {
					return "", fmt.Errorf("model returned no response")
				}
				return final.String(), nil
			}
			if resp.Partial {
				continue
			}
			sawFinal = true
			final.Reset()
			final.WriteString(resp.Content)
		}
	}
}

// InvokeText is the flat-string form of the invocation contract: the prompt
// becomes a single user message.
func InvokeText(ctx context.Context, m Model, prompt string) (string, error) {
	return Invoke(ctx, m, Request{Messages: []core.Message{core.NewMessage(core.RoleUser, prompt)}})
}
