package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopquery/shopquery/checkpoint"
	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/retrieval"
	"github.com/shopquery/shopquery/tool"
)

func testEngine(t *testing.T, optFns ...func(o *Options)) (*Engine, *checkpoint.InMemoryStore) {
	t.Helper()
	store := checkpoint.NewInMemoryStore()
	all := append([]func(o *Options){func(o *Options) { o.Checkpoints = store }}, optFns...)
	e := New(all...)

	idx := retrieval.NewInMemoryIndex(retrieval.NewTokenEmbedder(0))
	require.NoError(t, idx.Add(context.Background(),
		retrieval.Document{ID: "p1", Text: "Trailblazer waterproof hiking boots $120", Source: retrieval.SourceProduct},
		retrieval.Document{ID: "p2", Text: "Summit tent sleeps four, waterproof", Source: retrieval.SourceProduct},
		retrieval.Document{ID: "r1", Text: "reviewers love the Trailblazer grip", Source: retrieval.SourceReview},
	))
	e.RegisterTool(tool.NewProductSearchTool(idx, 5))
	e.RegisterTool(tool.NewReviewLookupTool(idx, 5))
	return e, store
}

func collect(t *testing.T, units <-chan core.Unit, errs <-chan error) ([]core.Unit, error) {
	t.Helper()
	var out []core.Unit
	for u := range units {
		out = append(out, u)
	}
	return out, <-errs
}

func TestSubmitHappyPath(t *testing.T) {
	e, store := testEngine(t)

	traceID, units, errs, err := e.Submit(context.Background(), "c1", "find waterproof hiking boots")
	require.NoError(t, err)
	require.NotEmpty(t, traceID)

	got, runErr := collect(t, units, errs)
	require.NoError(t, runErr)
	require.NotEmpty(t, got)

	var finals int
	for _, u := range got {
		assert.Equal(t, traceID, u.TraceID, "every unit carries the turn's trace id")
		if u.Terminal() {
			finals++
			assert.Equal(t, core.UnitFinal, u.Type)
			assert.Equal(t, core.StatusCompleted, u.Status)
			assert.NotEmpty(t, u.Answer)
		}
	}
	assert.Equal(t, 1, finals, "exactly one terminal unit")
	assert.True(t, got[len(got)-1].Terminal(), "stream ends with the terminal unit")

	turn, err := store.TurnByTrace(context.Background(), traceID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, turn.Status)
	assert.NotEmpty(t, turn.Answer, "answer committed before acknowledgement")
	assert.NotEmpty(t, turn.ToolCalls)
}

func TestSubmitValidation(t *testing.T) {
	e, _ := testEngine(t)
	_, _, _, err := e.Submit(context.Background(), "c1", "   ")
	assert.True(t, core.IsKind(err, core.KindValidation))

	_, _, _, err = e.Submit(context.Background(), "", "query")
	assert.True(t, core.IsKind(err, core.KindValidation))
}

func TestSubmitOutOfScope(t *testing.T) {
	e, store := testEngine(t)

	res, err := e.SubmitSync(context.Background(), "c1", "tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Status)
	assert.Contains(t, res.Answer, "outside what I can do")

	turn, err := store.TurnByTrace(context.Background(), res.TraceID)
	require.NoError(t, err)
	assert.Empty(t, turn.ToolCalls, "out of scope turns never dispatch tools")
}

func TestSubmitDegradedWhenNothingFound(t *testing.T) {
	e, _ := testEngine(t)

	res, err := e.SubmitSync(context.Background(), "c1", "find a quantum flux capacitor")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Status)
	assert.NotEmpty(t, res.Answer, "empty retrieval still completes with an honest answer")
}

func TestSubmitConflictOnBusyConversation(t *testing.T) {
	e, _ := testEngine(t)

	block := make(chan struct{})
	e.RegisterHook(NewFunctionHook(HookOnTransition, func(ctx context.Context, hc *HookContext) error {
		if hc.Turn.ConversationID == "c1" && hc.Turn.Status == core.StatusIntentClassified {
			<-block
		}
		return nil
	}))

	_, units, errs, err := e.Submit(context.Background(), "c1", "find boots")
	require.NoError(t, err)

	_, _, _, err = e.Submit(context.Background(), "c1", "find tents")
	assert.ErrorIs(t, err, core.ErrConflict)

	// A different conversation is unaffected.
	res, err := e.SubmitSync(context.Background(), "c2", "find tents")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Status)

	close(block)
	_, runErr := collect(t, units, errs)
	require.NoError(t, runErr)

	// The conversation is free again once its turn finished.
	res, err = e.SubmitSync(context.Background(), "c1", "find tents")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Status)
}

func TestCancelInFlightTurn(t *testing.T) {
	e, store := testEngine(t)

	entered := make(chan struct{})
	block := make(chan struct{})
	e.RegisterHook(NewFunctionHook(HookOnTransition, func(ctx context.Context, hc *HookContext) error {
		if hc.Turn.Status == core.StatusPlanned {
			close(entered)
			<-block
		}
		return nil
	}))

	traceID, units, errs, err := e.Submit(context.Background(), "c1", "find boots")
	require.NoError(t, err)

	<-entered
	require.NoError(t, e.Cancel(traceID))
	close(block)

	got, _ := collect(t, units, errs)
	require.NotEmpty(t, got)
	last := got[len(got)-1]
	assert.Equal(t, core.UnitError, last.Type)
	assert.Equal(t, core.StatusCancelled, last.Status)

	turn, err := store.TurnByTrace(context.Background(), traceID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, turn.Status)
}

func TestCancelUnknownTrace(t *testing.T) {
	e, _ := testEngine(t)
	assert.ErrorIs(t, e.Cancel("nope"), core.ErrNotFound)
}

func TestTurnIndexAdvances(t *testing.T) {
	e, store := testEngine(t)
	ctx := context.Background()

	first, err := e.SubmitSync(ctx, "c1", "find boots")
	require.NoError(t, err)
	second, err := e.SubmitSync(ctx, "c1", "find tents")
	require.NoError(t, err)

	conv, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, conv.Turns, 2)
	assert.Equal(t, first.TraceID, conv.Turns[0].TraceID)
	assert.Equal(t, second.TraceID, conv.Turns[1].TraceID)
	assert.Equal(t, 1, conv.Turns[1].Index)
}

func TestHooksObserveLifecycle(t *testing.T) {
	e, _ := testEngine(t)

	var transitions []core.TurnStatus
	var finals int
	e.RegisterHook(NewFunctionHook(HookOnTransition, func(ctx context.Context, hc *HookContext) error {
		transitions = append(transitions, hc.Turn.Status)
		return nil
	}))
	e.RegisterHook(NewFunctionHook(HookOnFinal, func(ctx context.Context, hc *HookContext) error {
		finals++
		return nil
	}))

	_, err := e.SubmitSync(context.Background(), "c1", "find boots")
	require.NoError(t, err)

	assert.Contains(t, transitions, core.StatusIntentClassified)
	assert.Contains(t, transitions, core.StatusPlanned)
	assert.Contains(t, transitions, core.StatusExecuting)
	assert.Contains(t, transitions, core.StatusSynthesizing)
	assert.Equal(t, 1, finals)
}

func TestSubmitSyncTimeBound(t *testing.T) {
	e, _ := testEngine(t, func(o *Options) {
		o.Config.ExecuteBudget = 50 * time.Millisecond
	})

	start := time.Now()
	res, err := e.SubmitSync(context.Background(), "c1", "find waterproof boots")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, res.Status)
	assert.Less(t, time.Since(start), 5*time.Second)
}

type stubPlanner struct {
	err error
}

func (p *stubPlanner) Plan(context.Context, string, core.Intent, []tool.Definition) (*core.Plan, error) {
	return nil, p.err
}

func (p *stubPlanner) Replan(context.Context, string, []string, core.ContextBundle, []tool.Definition) (*core.Plan, error) {
	return &core.Plan{}, nil
}

func TestSlowConsumerStillGetsTerminalUnit(t *testing.T) {
	e, _ := testEngine(t, func(o *Options) {
		o.Config.UnitBufferSize = 1
	})

	_, units, errs, err := e.Submit(context.Background(), "c1", "find waterproof hiking boots")
	require.NoError(t, err)

	// Read slower than the turn produces so the buffer stays full.
	var got []core.Unit
	for u := range units {
		time.Sleep(20 * time.Millisecond)
		got = append(got, u)
	}
	require.NoError(t, <-errs)

	require.NotEmpty(t, got)
	assert.True(t, got[len(got)-1].Terminal(), "stream ends with the terminal unit")
	var finals int
	for _, u := range got {
		if u.Terminal() {
			finals++
		}
	}
	assert.Equal(t, 1, finals, "exactly one terminal unit")
}

func TestPlannerTransientFailureDegrades(t *testing.T) {
	e, store := testEngine(t, func(o *Options) {
		o.Planner = &stubPlanner{err: core.NewError(core.KindTransient, "planning call failed", nil)}
	})

	res, err := e.SubmitSync(context.Background(), "c1", "find waterproof boots")
	require.NoError(t, err, "a flaky planner must not fail the turn")
	assert.Equal(t, core.StatusCompleted, res.Status)
	assert.Contains(t, res.Answer, "couldn't find", "degrades to the fixed no-results answer")

	turn, err := store.TurnByTrace(context.Background(), res.TraceID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, turn.Status)
	assert.Empty(t, turn.ToolCalls)
}

func TestPlannerValidationFailureFailsTurn(t *testing.T) {
	e, _ := testEngine(t, func(o *Options) {
		o.Planner = &stubPlanner{err: core.NewError(core.KindValidation, "plan references unknown tool", nil)}
	})

	res, err := e.SubmitSync(context.Background(), "c1", "find waterproof boots")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindValidation))
	assert.Equal(t, core.StatusFailed, res.Status)
}
