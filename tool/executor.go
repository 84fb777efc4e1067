package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/logging"
)

// ExecutorConfig tunes batch execution behavior.
type ExecutorConfig struct {
	// MaxParallel limits concurrent steps within one batch. 0 means no
	// explicit limit (batch size).
	MaxParallel int

	// StepTimeout bounds every single tool invocation attempt.
	StepTimeout time.Duration

	// MaxRetries is the number of additional attempts after the first for
	// transient failures. Mutating tools are capped at one retry
	// regardless.
	MaxRetries int

	// InitialBackoff and MaxBackoff bound the exponential delay between
	// attempts.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Logger receives structured execution records; defaults to NoOp.
	Logger logging.Logger
}

// DefaultExecutorConfig returns production defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxParallel:    4,
		StepTimeout:    10 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Executor resolves plan steps against the registry and runs batches of
// independent steps concurrently. Every outcome is returned as a ToolCall
// audit record; the executor never fails a batch because individual steps
// failed.
type Executor struct {
	registry *Registry
	cfg      ExecutorConfig
	logger   logging.Logger
}

// NewExecutor creates an executor over a registry.
func NewExecutor(registry *Registry, optFns ...func(c *ExecutorConfig)) *Executor {
	cfg := DefaultExecutorConfig()
	for _, fn := range optFns {
		fn(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{registry: registry, cfg: cfg, logger: logger}
}

// ExecuteBatch runs the given steps concurrently and joins before returning.
// Results are ordered by step position regardless of completion order. The
// context carries the turn's overall budget; each attempt additionally gets
// its own StepTimeout so one slow tool cannot stall siblings.
func (e *Executor) ExecuteBatch(ctx context.Context, conversationID, traceID string, steps []core.Step) []core.ToolCall {
	n := len(steps)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []core.ToolCall{e.executeStep(ctx, conversationID, traceID, steps[0])}
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	calls := make([]core.ToolCall, n)
	sem := make(chan struct{}, maxPar)
	var wg sync.WaitGroup

	batchStart := time.Now()
	for i := range steps {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, step core.Step) {
			defer wg.Done()
			defer func() { <-sem }()
			calls[idx] = e.executeStep(ctx, conversationID, traceID, step)
		}(i, steps[i])
	}
	wg.Wait()

	e.logger.Debug("executor.batch.complete",
		"trace_id", traceID,
		"steps", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return calls
}

// executeStep drives one step through resolution, validation and the retry
// loop, producing its audit record.
func (e *Executor) executeStep(ctx context.Context, conversationID, traceID string, step core.Step) core.ToolCall {
	call := core.ToolCall{
		StepID:    step.ID,
		Tool:      step.Tool,
		Arguments: step.Arguments,
		StartedAt: time.Now().UTC(),
	}
	defer func() { call.Latency = time.Since(call.StartedAt) }()

	impl, ok := e.registry.Get(step.Tool)
	if !ok {
		call.Attempts = 1
		call.Error = fmt.Sprintf("unknown tool %q", step.Tool)
		logging.LogToolCall(e.logger, step.Tool, call.Attempts, 0, errors.New(call.Error))
		return call
	}

	args, err := step.Args()
	if err != nil {
		call.Attempts = 1
		call.Error = fmt.Sprintf("malformed arguments: %v", err)
		return call
	}

	mutating, isMutating := impl.(MutatingTool)

	maxAttempts := e.cfg.MaxRetries + 1
	if isMutating && maxAttempts > 2 {
		maxAttempts = 2 // mutating calls are retried at most once
	}

	delay := e.cfg.InitialBackoff
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		call.Attempts = attempt

		inv := &Invocation{
			Context:        ctx,
			ConversationID: conversationID,
			TraceID:        traceID,
			StepID:         step.ID,
			Logger:         e.logger,
		}

		result, err := e.attempt(inv, impl, args)
		if err == nil {
			if result == nil {
				result = &core.ToolResult{}
			}
			call.Result = result
			call.Error = ""
			logging.LogToolCall(e.logger, step.Tool, attempt, time.Since(call.StartedAt), nil)
			return call
		}

		call.Error = err.Error()

		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			switch toolErr.Code {
			case CodeValidation:
				// Fail fast, never retried.
				logging.LogToolCall(e.logger, step.Tool, attempt, time.Since(call.StartedAt), err)
				return call
			case CodeNoResults:
				// A well-formed "nothing found" is an empty context
				// contribution, not a failure.
				call.Result = &core.ToolResult{}
				call.Error = ""
				return call
			}
		}

		if ctx.Err() != nil {
			call.Error = fmt.Sprintf("cancelled: %v", ctx.Err())
			return call
		}
		if attempt == maxAttempts {
			break
		}
		if isMutating && mutating.Applied(inv) {
			// The failed attempt took effect after all; retrying would
			// double-apply.
			e.logger.Warn("tool.retry.skipped", "tool", step.Tool, "op_key", inv.OpKey(), "reason", "effect already applied")
			break
		}

		e.logger.Debug("tool.retrying", "tool", step.Tool, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", err.Error())
		select {
		case <-ctx.Done():
			call.Error = fmt.Sprintf("cancelled: %v", ctx.Err())
			return call
		case <-time.After(delay):
			delay = min(delay*2, e.cfg.MaxBackoff)
		}
	}

	logging.LogToolCall(e.logger, step.Tool, call.Attempts, time.Since(call.StartedAt), errors.New(call.Error))
	return call
}

// attempt runs one invocation with its own timeout and panic recovery.
func (e *Executor) attempt(inv *Invocation, impl Tool, args map[string]any) (result *core.ToolResult, err error) {
	attemptCtx := inv.Context
	if e.cfg.StepTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(inv.Context, e.cfg.StepTimeout)
		defer cancel()
	}
	scoped := *inv
	scoped.Context = attemptCtx

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool.call.panic", "tool", impl.Name(), "recover", fmt.Sprintf("%v", r), "stack", string(debug.Stack()))
			result = nil
			err = NewToolError(impl.Name(), fmt.Sprintf("panic: %v", r), CodeExecution)
		}
	}()

	result, err = impl.Call(&scoped, args)
	if err == nil && attemptCtx.Err() != nil {
		err = NewToolError(impl.Name(), attemptCtx.Err().Error(), CodeTimeout)
	}
	return result, err
}
