package engine

import (
	"context"
	"sync"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/logging"
)

// HookType identifies a point in the turn lifecycle where hooks run.
type HookType string

const (
	// HookOnTransition fires after a state transition has been
	// checkpointed, before the status unit is emitted.
	HookOnTransition HookType = "on_transition"

	// HookOnToolCalls fires after an execution round with the freshly
	// recorded tool call results.
	HookOnToolCalls HookType = "on_tool_calls"

	// HookOnFinal fires once per turn with the terminal unit, after the
	// terminal checkpoint write.
	HookOnFinal HookType = "on_final"
)

// HookContext carries the observable state at the hook point. Hooks must
// treat it as read-only; mutating the turn from a hook is not supported.
type HookContext struct {
	Type  HookType
	Turn  *core.Turn
	Calls []core.ToolCall
	Unit  *core.Unit
}

// Hook observes turn execution. Hook errors are logged and never affect the
// turn outcome.
type Hook interface {
	Type() HookType
	Execute(ctx context.Context, hc *HookContext) error
}

// FunctionHook adapts a plain function into a Hook.
type FunctionHook struct {
	hookType HookType
	fn       func(ctx context.Context, hc *HookContext) error
}

// NewFunctionHook creates a hook from a function.
func NewFunctionHook(hookType HookType, fn func(ctx context.Context, hc *HookContext) error) *FunctionHook {
	return &FunctionHook{hookType: hookType, fn: fn}
}

// Type implements Hook.
func (h *FunctionHook) Type() HookType { return h.hookType }

// Execute implements Hook.
func (h *FunctionHook) Execute(ctx context.Context, hc *HookContext) error { return h.fn(ctx, hc) }

// hookManager dispatches hooks by type. Safe for concurrent use.
type hookManager struct {
	mu     sync.RWMutex
	hooks  map[HookType][]Hook
	logger logging.Logger
}

func newHookManager(logger logging.Logger) *hookManager {
	return &hookManager{hooks: make(map[HookType][]Hook), logger: logger}
}

func (m *hookManager) register(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks[h.Type()] = append(m.hooks[h.Type()], h)
}

// fire runs all hooks of the given type in registration order. A failing
// hook is logged and the rest still run.
func (m *hookManager) fire(ctx context.Context, hc *HookContext) {
	m.mu.RLock()
	hooks := m.hooks[hc.Type]
	m.mu.RUnlock()

	for _, h := range hooks {
		if err := h.Execute(ctx, hc); err != nil {
			m.logger.Warn("engine.hook.failed", "type", string(hc.Type), "error", err.Error())
		}
	}
}
