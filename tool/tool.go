// Package tool implements the capability subsystem of the orchestration
// engine: a uniform {name, schema, invoke} interface over retrieval and cart
// operations, a thread-safe registry resolved by name at plan-execution
// time, and an executor that drives batches of plan steps concurrently with
// per-step timeouts and a bounded retry policy.
package tool

import (
	"context"
	"fmt"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/internal/util"
	"github.com/shopquery/shopquery/logging"
)

// Tool is the common capability interface. New tools register with the
// Registry without any engine changes.
//
// Implementations must be safe for concurrent use: one tool instance serves
// every conversation.
type Tool interface {
	// Name returns the unique tool identifier (snake_case).
	Name() string

	// Description is shown to the planner model to decide when to use the tool.
	Description() string

	// Parameters returns a minimal JSON schema for the accepted arguments.
	Parameters() map[string]any

	// Call executes the tool with validated arguments.
	Call(inv *Invocation, args map[string]any) (*core.ToolResult, error)
}

// MutatingTool marks tools with side effects (cart add/remove). The executor
// retries a mutating call at most once, and only when Applied reports the
// failed attempt never took effect.
type MutatingTool interface {
	Tool

	// Applied reports whether the operation identified by inv.OpKey()
	// already took effect.
	Applied(inv *Invocation) bool
}

// Invocation carries per-call execution scope into a tool: cancellation
// context, correlation identifiers and a logger.
type Invocation struct {
	Context        context.Context
	ConversationID string
	TraceID        string
	StepID         string
	Logger         logging.Logger
}

// OpKey is the idempotency key for mutating operations, stable across
// retries of the same step.
func (inv *Invocation) OpKey() string { return inv.TraceID + "/" + inv.StepID }

// Log returns the invocation logger, never nil.
func (inv *Invocation) Log() logging.Logger {
	if inv.Logger == nil {
		return logging.NoOpLogger{}
	}
	return inv.Logger
}

// Error codes attached to ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeTimeout    = "TIMEOUT"
	CodeNoResults  = "NO_RESULTS"
)

// ToolError is the uniform failure type returned by tool calls.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// ValidationError re-exports the internal argument validation error type.
type ValidationError = util.ValidationError
