package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModelCannedResponse(t *testing.T) {
	m := NewMockModel("test")
	m.AddResponse("boots", `{"label":"product_query"}`)

	text, err := Complete(context.Background(), m, Request{
		Messages: []Message{{Role: "user", Text: "waterproof boots please"}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"label":"product_query"}`, text)
	assert.Equal(t, 1, m.Calls())
}

func TestMockModelFallback(t *testing.T) {
	m := NewMockModel("test")
	text, err := Complete(context.Background(), m, Request{
		Messages: []Message{{Role: "user", Text: "hello"}},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "hello")
}

func TestMockModelFailure(t *testing.T) {
	m := NewMockModel("test")
	boom := errors.New("provider down")
	m.FailWith(boom)

	_, err := Complete(context.Background(), m, Request{
		Messages: []Message{{Role: "user", Text: "hi"}},
	})
	assert.ErrorIs(t, err, boom)
}

func TestMockModelStreaming(t *testing.T) {
	m := NewMockModel("test")
	m.AddResponse("stream me", "three word answer")

	respCh, errCh := m.Generate(context.Background(), Request{
		Messages: []Message{{Role: "user", Text: "stream me"}},
		Stream:   true,
	})

	var partials []string
	var final Response
	for resp := range respCh {
		if resp.Partial {
			partials = append(partials, resp.Text)
		} else {
			final = resp
		}
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, []string{"three ", "word ", "answer"}, partials)
	assert.Equal(t, "three word answer", final.Text)
	assert.Equal(t, "stop", final.FinishReason)
}

func TestMockModelContextCancel(t *testing.T) {
	m := NewMockModel("test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Complete(ctx, m, Request{Messages: []Message{{Role: "user", Text: "hi"}}})
	assert.Error(t, err)
}
