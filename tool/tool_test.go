package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopquery/shopquery/cart"
	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/retrieval"
)

func testInvocation() *Invocation {
	return &Invocation{
		Context:        context.Background(),
		ConversationID: "conv-1",
		TraceID:        "trace-1",
		StepID:         "s1",
	}
}

func TestFunctionToolValidation(t *testing.T) {
	ft := NewFunctionTool("echo", "Echo the input.",
		map[string]any{
			"type":       "object",
			"properties": map[string]any{"text": map[string]any{"type": "string"}},
			"required":   []string{"text"},
		},
		func(_ *Invocation, args map[string]any) (*core.ToolResult, error) {
			return &core.ToolResult{Data: map[string]any{"echo": args["text"]}}, nil
		})

	result, err := ft.Call(testInvocation(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Data["echo"])

	_, err = ft.Call(testInvocation(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionToolErrorWrapping(t *testing.T) {
	plain := NewFunctionTool("failing", "Always fails.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(*Invocation, map[string]any) (*core.ToolResult, error) {
			return nil, errors.New("backend unreachable")
		})
	_, err := plain.Call(testInvocation(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)

	custom := NewFunctionTool("custom", "Fails with a tool error.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(*Invocation, map[string]any) (*core.ToolResult, error) {
			return nil, NewToolError("custom", "nothing found", CodeNoResults)
		})
	_, err = custom.Call(testInvocation(), map[string]any{})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeNoResults, toolErr.Code, "tool errors pass through unchanged")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("missing")
	assert.False(t, ok)

	svc := cart.NewService()
	r.Register(NewCartViewTool(svc))
	r.Register(NewCartAddTool(svc))

	got, ok := r.Get("cart_add")
	require.True(t, ok)
	assert.Equal(t, "cart_add", got.Name())

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "cart_add", defs[0].Name, "definitions sorted by name")
	assert.Equal(t, "cart_view", defs[1].Name)
}

func TestProductSearchTool(t *testing.T) {
	idx := retrieval.NewInMemoryIndex(retrieval.NewTokenEmbedder(64))
	require.NoError(t, idx.Add(context.Background(),
		retrieval.Document{ID: "p1", Text: "waterproof hiking boots", Source: retrieval.SourceProduct},
		retrieval.Document{ID: "r1", Text: "great boots says a review", Source: retrieval.SourceReview},
	))

	search := NewProductSearchTool(idx, 5)
	result, err := search.Call(testInvocation(), map[string]any{"query": "hiking boots"})
	require.NoError(t, err)
	require.Len(t, result.Passages, 1, "review passages filtered out")
	assert.Equal(t, "p1", result.Passages[0].ID)
}

func TestProductSearchToolNoResults(t *testing.T) {
	idx := retrieval.NewInMemoryIndex(retrieval.NewTokenEmbedder(64))
	search := NewProductSearchTool(idx, 5)

	_, err := search.Call(testInvocation(), map[string]any{"query": "anything"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeNoResults, toolErr.Code)
}

func TestCartTools(t *testing.T) {
	svc := cart.NewService()
	add := NewCartAddTool(svc)
	view := NewCartViewTool(svc)
	remove := NewCartRemoveTool(svc)

	result, err := add.Call(testInvocation(), map[string]any{"sku": "sku-1", "name": "Boots", "quantity": float64(2)})
	require.NoError(t, err)
	items := result.Data["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].(map[string]any)["quantity"])

	assert.True(t, add.Applied(testInvocation()), "op key recorded after apply")

	result, err = view.Call(testInvocation(), nil)
	require.NoError(t, err)
	assert.Len(t, result.Data["items"], 1)

	inv := testInvocation()
	inv.StepID = "s2"
	result, err = remove.Call(inv, map[string]any{"sku": "sku-1"})
	require.NoError(t, err)
	assert.Empty(t, result.Data["items"])
}
