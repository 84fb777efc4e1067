package tool

import (
	"errors"
	"time"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/internal/util"
)

// FunctionTool adapts a plain Go function into a Tool. It validates
// arguments against the declared schema before execution and normalizes
// failures into *ToolError so the executor can classify them uniformly.
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(inv *Invocation, args map[string]any) (*core.ToolResult, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(inv *Invocation, args map[string]any) (*core.ToolResult, error),
) *FunctionTool {
	return &FunctionTool{name: name, description: description, parameters: parameters, fn: fn}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct's
// exported fields via reflection.
func NewFunctionToolFromStruct(
	name, description string,
	argsType any,
	fn func(inv *Invocation, args map[string]any) (*core.ToolResult, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.SchemaFromStruct(argsType), fn)
}

// Name implements Tool.
func (t *FunctionTool) Name() string { return t.name }

// Description implements Tool.
func (t *FunctionTool) Description() string { return t.description }

// Parameters implements Tool.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args then invokes the wrapped function.
//
// Error semantics:
//
//	*ToolError returned by fn  -> forwarded unchanged
//	schema validation failure  -> *ToolError{Code: CodeValidation}
//	any other error            -> *ToolError{Code: CodeExecution}
func (t *FunctionTool) Call(inv *Invocation, args map[string]any) (*core.ToolResult, error) {
	logger := inv.Log()
	start := time.Now()

	if err := util.ValidateArgs(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeValidation}
	}

	result, err := t.fn(inv, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
	}

	logger.Debug("tool.call.done", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())
	return result, nil
}
