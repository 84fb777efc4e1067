package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/model"
	"github.com/shopquery/shopquery/tool"
)

var testTools = []tool.Definition{
	{Name: "product_search", Description: "search products"},
	{Name: "review_lookup", Description: "search reviews"},
	{Name: "cart_view", Description: "show cart"},
}

func TestModelPlannerPlan(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("hiking boots", `{
		"steps": [
			{"id": "s1", "tool": "product_search", "arguments": {"query": "hiking boots", "limit": 5}},
			{"id": "s2", "tool": "review_lookup", "arguments": {"query": "hiking boots"}, "depends_on": ["s1"]}
		],
		"rationale": "search then check reviews"
	}`)

	p := NewModelPlanner(m)
	plan, err := p.Plan(context.Background(), "best hiking boots", core.Intent{Label: core.IntentProductQuery}, testTools)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "product_search", plan.Steps[0].Tool)
	assert.Equal(t, []string{"s1"}, plan.Steps[1].DependsOn)

	batches := plan.Batches()
	require.Len(t, batches, 2, "dependent step runs in a later batch")
}

func TestModelPlannerUnknownToolRejected(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("Query:", `{"steps": [{"id": "s1", "tool": "teleport", "arguments": {}}]}`)

	p := NewModelPlanner(m)
	_, err := p.Plan(context.Background(), "anything", core.Intent{Label: core.IntentProductQuery}, testTools)
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestModelPlannerFillsMissingIDs(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("Query:", `{"steps": [
		{"tool": "product_search", "arguments": {"query": "a"}},
		{"tool": "review_lookup", "arguments": {"query": "a"}}
	]}`)

	p := NewModelPlanner(m)
	plan, err := p.Plan(context.Background(), "a", core.Intent{Label: core.IntentProductQuery}, testTools)
	require.NoError(t, err)
	assert.Equal(t, "s1", plan.Steps[0].ID)
	assert.Equal(t, "s2", plan.Steps[1].ID)
}

func TestModelPlannerEmptyPlan(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("Query:", `{"steps": [], "rationale": "nothing to do"}`)

	p := NewModelPlanner(m)
	plan, err := p.Plan(context.Background(), "hello", core.Intent{Label: core.IntentOutOfScope}, testTools)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestModelPlannerReplanStops(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("revising", `{"steps": []}`)

	p := NewModelPlanner(m)
	bundle := core.ContextBundle{Passages: []core.Passage{{ID: "p1", Text: "enough"}}}
	plan, err := p.Replan(context.Background(), "q", []string{"s1"}, bundle, testTools)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestModelPlannerReplanContinues(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("revising", `{"steps": [{"tool": "review_lookup", "arguments": {"query": "more"}}]}`)

	p := NewModelPlanner(m)
	plan, err := p.Replan(context.Background(), "q", []string{"s1"}, core.ContextBundle{}, testTools)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "s2", plan.Steps[0].ID, "replanned ids continue after executed steps")
}

func TestRulePlanner(t *testing.T) {
	p := NewRulePlanner()

	plan, err := p.Plan(context.Background(), "best tent", core.Intent{Label: core.IntentProductQuery}, testTools)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "product_search", plan.Steps[0].Tool)

	plan, err = p.Plan(context.Background(), "hello", core.Intent{Label: core.IntentOutOfScope}, testTools)
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	plan, err = p.Replan(context.Background(), "q", nil, core.ContextBundle{}, testTools)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestModelPlannerRetriesTransientFailure(t *testing.T) {
	m := model.NewMockModel("mock")
	m.AddResponse("Query:", `{"steps": [{"id": "s1", "tool": "product_search", "arguments": {"query": "boots"}}]}`)
	m.FailNTimes(errors.New("upstream hiccup"), 1)

	p := NewModelPlanner(m, func(o *Options) { o.InitialBackoff = time.Millisecond })
	plan, err := p.Plan(context.Background(), "boots", core.Intent{Label: core.IntentProductQuery}, testTools)
	require.NoError(t, err, "one flaky call is absorbed by the retry")
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, 2, m.Calls())
}

func TestModelPlannerRetryBound(t *testing.T) {
	m := model.NewMockModel("mock")
	m.FailNTimes(errors.New("upstream hiccup"), 10)

	p := NewModelPlanner(m, func(o *Options) { o.InitialBackoff = time.Millisecond })
	_, err := p.Plan(context.Background(), "boots", core.Intent{Label: core.IntentProductQuery}, testTools)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindTransient))
	assert.Equal(t, 3, m.Calls(), "two retries after the initial attempt")
}
