// Package model defines the provider-agnostic language-model capability
// consumed by the router, planner and synthesizer. Providers are adapted in
// the openai and anthropic subpackages; tests use MockModel.
package model

import (
	"context"
	"strings"
)

// Message is one conversational input to the model.
type Message struct {
	Role string `json:"role"` // "user" or "assistant"
	Text string `json:"text"`
}

// Request is the normalized model input.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream,omitempty"`
}

// Response is a partial or final chunk emitted by a model. For streaming
// requests, partial chunks carry deltas and the final chunk carries the
// finish reason; non-streaming requests emit a single final chunk.
type Response struct {
	Text         string `json:"text"`
	Partial      bool   `json:"partial"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Usage captures token accounting when the provider reports it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Info describes a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal generation interface. Generate returns a response
// channel and an error channel; both are closed when generation completes.
// The error channel carries at most one terminal error. Implementations must
// honor ctx cancellation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns metadata about the model implementation.
	Info() Info
}

// Complete drains a non-streaming generation into the full response text.
// Convenience for the router and planner which need whole replies.
func Complete(ctx context.Context, m Model, req Request) (string, error) {
	req.Stream = false
	respCh, errCh := m.Generate(ctx, req)

	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				if err := <-errCh; err != nil {
					return "", err
				}
				return sb.String(), nil
			}
			sb.WriteString(resp.Text)
		}
	}
}
