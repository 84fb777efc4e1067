package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopquery/shopquery/checkpoint"
	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/logging"
	"github.com/shopquery/shopquery/planner"
	"github.com/shopquery/shopquery/router"
	"github.com/shopquery/shopquery/synth"
	"github.com/shopquery/shopquery/tool"
)

// Config defines tuning parameters for turn execution.
type Config struct {
	// MaxPlanIterations bounds how many plans (initial plus revisions) a
	// single turn may execute. The loop stops at the bound and synthesizes
	// from whatever has been gathered.
	MaxPlanIterations int

	// ExecuteBudget is the wall-clock budget for the whole
	// plan-execute-replan loop of one turn.
	ExecuteBudget time.Duration

	// UnitBufferSize sets the output channel buffer. A slow consumer
	// applies backpressure once the buffer fills.
	UnitBufferSize int

	// HistoryLimit caps how many past exchanges are shown to the
	// classifier. Zero means all.
	HistoryLimit int
}

// terminalGrace bounds how long the terminal unit send waits on a slow
// consumer before the unit is dropped as undeliverable.
const terminalGrace = 5 * time.Second

// DefaultConfig provides production defaults.
var DefaultConfig = Config{
	MaxPlanIterations: 3,
	ExecuteBudget:     20 * time.Second,
	UnitBufferSize:    64,
	HistoryLimit:      10,
}

// Synthesizer produces the final answer from the assembled bundle,
// optionally streaming deltas through emit.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, bundle core.ContextBundle, emit func(delta string)) (string, error)
}

// Options configures an Engine. All dependencies have in-memory, model-free
// defaults so a zero-option engine works for development and tests.
type Options struct {
	Config      Config
	Checkpoints core.CheckpointStore
	Classifier  router.Classifier
	Planner     planner.Planner
	Synthesizer Synthesizer
	Registry    *tool.Registry
	Executor    *tool.Executor
	Logger      logging.Logger
	Hooks       []Hook
}

// Engine drives turns through classification, planning, tool execution,
// synthesis and checkpointing. Safe for concurrent use across
// conversations; within one conversation turns are strictly sequential.
type Engine struct {
	checkpoints core.CheckpointStore
	classifier  router.Classifier
	planner     planner.Planner
	synth       Synthesizer
	registry    *tool.Registry
	executor    *tool.Executor
	hooks       *hookManager
	logger      logging.Logger
	config      Config

	mu             sync.Mutex
	active         map[string]context.CancelFunc // by trace id
	byConversation map[string]string             // conversation id -> in-flight trace id
}

// New creates an Engine. Without options it runs entirely in memory with
// the keyword classifier, the rule planner and extractive synthesis.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:      DefaultConfig,
		Checkpoints: checkpoint.NewInMemoryStore(),
		Classifier:  router.NewKeywordClassifier(),
		Planner:     planner.NewRulePlanner(),
		Synthesizer: synth.NewExtractive(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Registry == nil {
		opts.Registry = tool.NewRegistry()
	}
	if opts.Executor == nil {
		opts.Executor = tool.NewExecutor(opts.Registry, func(c *tool.ExecutorConfig) {
			c.Logger = opts.Logger
		})
	}

	e := &Engine{
		checkpoints:    opts.Checkpoints,
		classifier:     opts.Classifier,
		planner:        opts.Planner,
		synth:          opts.Synthesizer,
		registry:       opts.Registry,
		executor:       opts.Executor,
		hooks:          newHookManager(opts.Logger),
		logger:         opts.Logger,
		config:         opts.Config,
		active:         make(map[string]context.CancelFunc),
		byConversation: make(map[string]string),
	}
	for _, h := range opts.Hooks {
		e.hooks.register(h)
	}
	return e
}

// RegisterTool adds a tool to the engine's registry.
func (e *Engine) RegisterTool(t tool.Tool) { e.registry.Register(t) }

// RegisterHook adds a lifecycle hook.
func (e *Engine) RegisterHook(h Hook) { e.hooks.register(h) }

// Tools returns the registered tool definitions, sorted by name.
func (e *Engine) Tools() []tool.Definition { return e.registry.Definitions() }

// Submit starts a turn asynchronously and returns the trace id plus the
// unit stream. The trace id is minted before any work happens and is the
// correlation key for cancellation and feedback.
//
// The unit stream always terminates with exactly one final or error unit.
// The error channel carries at most one terminal error mirroring the error
// unit; both channels close when the turn reaches a terminal state.
//
// Immediate errors: a blank query or conversation id returns a validation
// error, a second submit for a conversation with a turn in flight returns
// core.ErrConflict, and a checkpoint write failure (after one retry)
// returns a persistence error. In all immediate-error cases nothing has
// been acknowledged and no turn is recorded.
func (e *Engine) Submit(ctx context.Context, conversationID, query string) (string, <-chan core.Unit, <-chan error, error) {
	if strings.TrimSpace(conversationID) == "" {
		return "", nil, nil, core.NewError(core.KindValidation, "conversation id is required", nil)
	}
	if strings.TrimSpace(query) == "" {
		return "", nil, nil, core.NewError(core.KindValidation, "query is required", nil)
	}

	conv, err := e.checkpoints.LoadOrCreate(ctx, conversationID)
	if err != nil {
		return "", nil, nil, core.NewError(core.KindPersistence, "load conversation", err)
	}
	turn := core.NewTurn(conversationID, len(conv.Turns), query)

	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	if _, busy := e.byConversation[conversationID]; busy {
		e.mu.Unlock()
		cancel()
		return "", nil, nil, core.ErrConflict
	}
	e.active[turn.TraceID] = cancel
	e.byConversation[conversationID] = turn.TraceID
	e.mu.Unlock()

	// Committed before the caller sees the trace id.
	if err := e.persist(ctx, func() error { return e.checkpoints.AppendTurn(ctx, conversationID, turn) }); err != nil {
		e.release(turn)
		cancel()
		return "", nil, nil, err
	}

	units := make(chan core.Unit, e.config.UnitBufferSize)
	errs := make(chan error, 1)
	go func() {
		defer cancel()
		e.run(runCtx, turn, conv, units, errs)
	}()
	return turn.TraceID, units, errs, nil
}

// Result is the collected outcome of a synchronous submit.
type Result struct {
	TraceID string
	Answer  string
	Status  core.TurnStatus
	Units   []core.Unit
}

// SubmitSync runs a turn to completion and returns the collected units.
// Convenience for CLI and test callers that do not stream.
func (e *Engine) SubmitSync(ctx context.Context, conversationID, query string) (*Result, error) {
	traceID, units, errs, err := e.Submit(ctx, conversationID, query)
	if err != nil {
		return nil, err
	}
	res := &Result{TraceID: traceID}
	for u := range units {
		res.Units = append(res.Units, u)
		if u.Terminal() {
			res.Answer = u.Answer
			res.Status = u.Status
		}
	}
	if err := <-errs; err != nil {
		return res, err
	}
	return res, nil
}

// Cancel requests cancellation of an in-flight turn by trace id. Unknown or
// already finished trace ids return core.ErrNotFound. Cancellation is
// asynchronous; the turn's stream terminates with an error unit in the
// cancelled status.
func (e *Engine) Cancel(traceID string) error {
	e.mu.Lock()
	cancel, ok := e.active[traceID]
	e.mu.Unlock()
	if !ok {
		return core.ErrNotFound
	}
	cancel()
	return nil
}

func (e *Engine) release(turn *core.Turn) {
	e.mu.Lock()
	delete(e.active, turn.TraceID)
	if e.byConversation[turn.ConversationID] == turn.TraceID {
		delete(e.byConversation, turn.ConversationID)
	}
	e.mu.Unlock()
}

// persist runs one checkpoint write, retrying once on failure. Conflicts
// are not retried; a retry cannot make a stale index fresh.
func (e *Engine) persist(ctx context.Context, op func() error) error {
	err := op()
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrConflict) {
		return core.ErrConflict
	}
	e.logger.Warn("engine.checkpoint.retry", "error", err.Error())
	if err := op(); err != nil {
		return core.NewError(core.KindPersistence, "checkpoint write", err)
	}
	return nil
}

// run drives one turn through the state machine. It owns the turn record
// and the output channels; nothing else mutates either.
func (e *Engine) run(ctx context.Context, turn *core.Turn, conv *core.Conversation, units chan<- core.Unit, errs chan<- error) {
	defer close(errs)
	defer close(units)
	defer e.release(turn)

	logger := logging.WithTurn(e.logger, turn.ConversationID, turn.TraceID)
	started := time.Now()
	logger.Info("turn.started", "query", turn.Query, "index", turn.Index)

	// Checkpoint writes after cancellation still need a live context.
	storeCtx := context.WithoutCancel(ctx)

	emit := func(u core.Unit) {
		select {
		case units <- u:
		case <-ctx.Done():
		}
	}
	// The terminal unit must reach any consumer that is still reading, even
	// after cancellation: block on the send, bounded by the grace window.
	// Only a stream nobody drains within the grace window drops it.
	emitTerminal := func(u core.Unit) {
		e.hooks.fire(storeCtx, &HookContext{Type: HookOnFinal, Turn: turn, Unit: &u})
		grace := time.NewTimer(terminalGrace)
		defer grace.Stop()
		select {
		case units <- u:
		case <-grace.C:
			logger.Warn("turn.unit.dropped", "type", string(u.Type))
		}
	}

	transition := func(status core.TurnStatus) error {
		if !turn.Status.CanTransition(status) {
			return fmt.Errorf("illegal transition %s -> %s", turn.Status, status)
		}
		turn.Status = status
		turn.UpdatedAt = time.Now().UTC()
		if err := e.persist(storeCtx, func() error { return e.checkpoints.UpdateTurn(storeCtx, turn) }); err != nil {
			return err
		}
		e.hooks.fire(storeCtx, &HookContext{Type: HookOnTransition, Turn: turn})
		emit(core.NewStatusUnit(turn.TraceID, status))
		return nil
	}

	fail := func(err error) {
		turn.Status = core.StatusFailed
		turn.Error = err.Error()
		turn.UpdatedAt = time.Now().UTC()
		if perr := e.checkpoints.UpdateTurn(storeCtx, turn); perr != nil {
			logger.Error("turn.checkpoint.lost", "error", perr.Error())
		}
		logger.Error("turn.failed", "kind", string(core.KindOf(err)), "error", err.Error(), "duration_ms", time.Since(started).Milliseconds())
		emitTerminal(core.NewErrorUnit(turn.TraceID, err.Error(), core.StatusFailed))
		errs <- err
	}

	cancelled := func() {
		turn.Status = core.StatusCancelled
		turn.UpdatedAt = time.Now().UTC()
		if perr := e.checkpoints.UpdateTurn(storeCtx, turn); perr != nil {
			logger.Error("turn.checkpoint.lost", "error", perr.Error())
		}
		logger.Info("turn.cancelled", "duration_ms", time.Since(started).Milliseconds())
		emitTerminal(core.NewErrorUnit(turn.TraceID, "turn cancelled", core.StatusCancelled))
	}

	complete := func(answer string) {
		turn.Answer = answer
		turn.Status = core.StatusCompleted
		turn.UpdatedAt = time.Now().UTC()
		// Commit before acknowledge: the final unit only goes out once the
		// completed turn is durable.
		if err := e.persist(storeCtx, func() error { return e.checkpoints.UpdateTurn(storeCtx, turn) }); err != nil {
			fail(err)
			return
		}
		logger.Info("turn.completed", "tool_calls", len(turn.ToolCalls), "duration_ms", time.Since(started).Milliseconds())
		emitTerminal(core.NewFinalUnit(turn.TraceID, answer, core.StatusCompleted))
	}

	// Classification.
	history := conv.History()
	if n := e.config.HistoryLimit; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	intent, err := e.classifier.Classify(ctx, turn.Query, history)
	if err != nil {
		if ctx.Err() != nil {
			cancelled()
			return
		}
		fail(err)
		return
	}
	turn.Intent = &intent
	if err := transition(core.StatusIntentClassified); err != nil {
		fail(err)
		return
	}
	logger.Debug("turn.classified", "label", intent.Label, "confidence", intent.Confidence)

	if !intent.InScope() {
		complete(synth.AnswerOutOfScope)
		return
	}

	// Planning. The planner retries transient model failures internally; a
	// residual transient error degrades to an empty plan (synthesis from
	// conversation context alone) rather than failing the turn. Only
	// validation errors are terminal here.
	plan, err := e.planner.Plan(ctx, turn.Query, intent, e.registry.Definitions())
	if err != nil {
		if ctx.Err() != nil {
			cancelled()
			return
		}
		if core.IsKind(err, core.KindValidation) {
			fail(err)
			return
		}
		logger.Warn("turn.plan.degraded", "kind", string(core.KindOf(err)), "error", err.Error())
		plan = &core.Plan{}
	}
	turn.Plan = plan
	if err := transition(core.StatusPlanned); err != nil {
		fail(err)
		return
	}

	// Execution with bounded re-planning.
	if !plan.Empty() {
		if err := transition(core.StatusExecuting); err != nil {
			fail(err)
			return
		}
		execCtx, cancelExec := context.WithTimeout(ctx, e.config.ExecuteBudget)
		var executed []string
		for iteration := 0; ; iteration++ {
			for _, batch := range plan.Batches() {
				calls := e.executor.ExecuteBatch(execCtx, turn.ConversationID, turn.TraceID, batch)
				turn.ToolCalls = append(turn.ToolCalls, calls...)
				for _, c := range calls {
					executed = append(executed, c.StepID)
				}
			}
			e.hooks.fire(storeCtx, &HookContext{Type: HookOnToolCalls, Turn: turn, Calls: turn.ToolCalls})
			if perr := e.checkpoints.UpdateTurn(storeCtx, turn); perr != nil {
				logger.Warn("turn.checkpoint.deferred", "error", perr.Error())
			}

			if ctx.Err() != nil {
				cancelExec()
				cancelled()
				return
			}
			if iteration+1 >= e.config.MaxPlanIterations || execCtx.Err() != nil {
				break
			}

			next, err := e.planner.Replan(execCtx, turn.Query, executed, core.AssembleBundle(turn.ToolCalls), e.registry.Definitions())
			if err != nil {
				logger.Warn("turn.replan.failed", "error", err.Error())
				break
			}
			if next.Empty() {
				break
			}
			turn.Plan.Steps = append(turn.Plan.Steps, next.Steps...)
			turn.Plan.Iteration = iteration + 1
			plan = next
			logger.Debug("turn.replanned", "iteration", iteration+1, "steps", len(next.Steps))
			if err := transition(core.StatusExecuting); err != nil {
				cancelExec()
				fail(err)
				return
			}
		}
		cancelExec()
	}

	// Synthesis.
	if err := transition(core.StatusSynthesizing); err != nil {
		fail(err)
		return
	}
	bundle := core.AssembleBundle(turn.ToolCalls)
	streaming := false
	answer, err := e.synth.Synthesize(ctx, turn.Query, bundle, func(delta string) {
		if !streaming {
			streaming = true
			if terr := transition(core.StatusStreaming); terr != nil {
				logger.Warn("turn.checkpoint.deferred", "error", terr.Error())
			}
		}
		emit(core.NewDeltaUnit(turn.TraceID, delta))
	})
	if err != nil {
		if ctx.Err() != nil {
			cancelled()
			return
		}
		fail(err)
		return
	}
	if ctx.Err() != nil {
		cancelled()
		return
	}
	complete(answer)
}
