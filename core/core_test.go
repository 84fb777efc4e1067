package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnStatusTransitions(t *testing.T) {
	assert.True(t, StatusReceived.CanTransition(StatusIntentClassified))
	assert.True(t, StatusIntentClassified.CanTransition(StatusPlanned))
	assert.True(t, StatusExecuting.CanTransition(StatusExecuting), "re-planning self-transition")
	assert.True(t, StatusExecuting.CanTransition(StatusSynthesizing))
	assert.True(t, StatusReceived.CanTransition(StatusFailed), "failure reachable from any state")
	assert.True(t, StatusStreaming.CanTransition(StatusCancelled))

	assert.False(t, StatusPlanned.CanTransition(StatusReceived), "no backwards transition")
	assert.False(t, StatusSynthesizing.CanTransition(StatusExecuting))
	assert.False(t, StatusCompleted.CanTransition(StatusFailed), "terminal states are final")
	assert.False(t, StatusCancelled.CanTransition(StatusStreaming))
}

func TestNewTurnMintsUniqueTraceIDs(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		turn := NewTurn("conv-1", i, "q")
		require.NotEmpty(t, turn.TraceID)
		assert.False(t, seen[turn.TraceID], "trace id reused")
		seen[turn.TraceID] = true
		assert.Equal(t, StatusReceived, turn.Status)
	}
}

func TestPlanBatchesRespectDependencies(t *testing.T) {
	p := &Plan{Steps: []Step{
		{ID: "s1", Tool: "product_search"},
		{ID: "s2", Tool: "review_lookup"},
		{ID: "s3", Tool: "review_lookup", DependsOn: []string{"s1"}},
		{ID: "s4", Tool: "cart_view", DependsOn: []string{"s3", "s2"}},
	}}

	batches := p.Batches()
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 2, "independent steps share the first batch")
	assert.Equal(t, "s3", batches[1][0].ID)
	assert.Equal(t, "s4", batches[2][0].ID)
}

func TestPlanBatchesUnknownDependency(t *testing.T) {
	p := &Plan{Steps: []Step{
		{ID: "a", Tool: "product_search"},
		{ID: "b", Tool: "review_lookup", DependsOn: []string{"missing"}},
	}}
	batches := p.Batches()
	// Steps naming unknown dependencies wait for everything before them.
	require.Len(t, batches, 2)
	assert.Equal(t, "b", batches[1][0].ID)
}

func TestPlanEmpty(t *testing.T) {
	var p *Plan
	assert.True(t, p.Empty())
	assert.True(t, (&Plan{}).Empty())
	assert.Nil(t, (&Plan{}).Batches())
}

func TestStepArgs(t *testing.T) {
	s := Step{Arguments: json.RawMessage(`{"query":"boots","limit":5}`)}
	args, err := s.Args()
	require.NoError(t, err)
	assert.Equal(t, "boots", args["query"])

	empty := Step{}
	args, err = empty.Args()
	require.NoError(t, err)
	assert.Empty(t, args)

	bad := Step{Arguments: json.RawMessage(`not json`)}
	_, err = bad.Args()
	assert.Error(t, err)
}

func TestAssembleBundleDedupAndOrder(t *testing.T) {
	calls := []ToolCall{
		{Tool: "product_search", Result: &ToolResult{Passages: []Passage{
			{ID: "p2", Text: "mid", Score: 0.5},
			{ID: "p1", Text: "low copy", Score: 0.2},
		}}},
		{Tool: "review_lookup", Result: &ToolResult{Passages: []Passage{
			{ID: "p1", Text: "high copy", Score: 0.9},
			{ID: "p3", Text: "tie-a", Score: 0.5},
		}}},
		{Tool: "product_search", Error: "timeout"}, // failed calls contribute nothing
	}

	b := AssembleBundle(calls)
	require.Len(t, b.Passages, 3)
	assert.Equal(t, "p1", b.Passages[0].ID, "highest score wins dedup")
	assert.Equal(t, "high copy", b.Passages[0].Text)
	// Equal scores tie-break on id so ordering depends only on content.
	assert.Equal(t, "p2", b.Passages[1].ID)
	assert.Equal(t, "p3", b.Passages[2].ID)
}

func TestAssembleBundleStableAcrossCompletionOrder(t *testing.T) {
	a := ToolCall{Tool: "product_search", Result: &ToolResult{Passages: []Passage{{ID: "x", Score: 0.8}}}}
	b := ToolCall{Tool: "review_lookup", Result: &ToolResult{Passages: []Passage{{ID: "y", Score: 0.4}}}}

	first := AssembleBundle([]ToolCall{a, b})
	second := AssembleBundle([]ToolCall{b, a})
	assert.Equal(t, first, second)
}

func TestAssembleBundleCartData(t *testing.T) {
	calls := []ToolCall{
		{Tool: "cart_add", Result: &ToolResult{Data: map[string]any{"items": []string{"sku-1"}}}},
		{Tool: "cart_add", Result: &ToolResult{Data: map[string]any{"items": []string{"sku-1", "sku-2"}}}},
	}
	b := AssembleBundle(calls)
	assert.False(t, b.Empty())
	assert.Equal(t, map[string]any{"items": []string{"sku-1", "sku-2"}}, b.CartData)
}

func TestConversationHistorySkipsNonCompleted(t *testing.T) {
	conv := NewConversation("c1")
	done := NewTurn("c1", 0, "first")
	done.Status = StatusCompleted
	done.Answer = "answer one"
	failed := NewTurn("c1", 1, "second")
	failed.Status = StatusFailed
	conv.Turns = append(conv.Turns, *done, *failed)

	hist := conv.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "first", hist[0].Query)
	assert.Equal(t, "answer one", hist[0].Answer)
}

func TestErrorKindClassification(t *testing.T) {
	err := NewError(KindValidation, "unknown tool", nil)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, IsKind(err, KindValidation))

	wrapped := NewError(KindPersistence, "append turn", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Equal(t, KindPersistence, KindOf(wrapped))

	// Unclassified errors default to transient.
	assert.Equal(t, KindTransient, KindOf(assert.AnError))
}

func TestUnitTerminal(t *testing.T) {
	assert.False(t, NewStatusUnit("t", StatusExecuting).Terminal())
	assert.False(t, NewDeltaUnit("t", "chunk").Terminal())
	assert.True(t, NewFinalUnit("t", "answer", StatusCompleted).Terminal())
	assert.True(t, NewErrorUnit("t", "boom", StatusFailed).Terminal())
}

func TestSentimentValid(t *testing.T) {
	assert.True(t, SentimentPositive.Valid())
	assert.True(t, SentimentNegative.Valid())
	assert.False(t, Sentiment("meh").Valid())
}
