// Package engine contains the orchestrator that drives a query through the
// full turn lifecycle: intent classification, planning, concurrent tool
// execution with bounded re-planning, streaming synthesis and checkpointing.
//
// The engine is the only component that mutates a turn. Every state
// transition is checkpointed before the corresponding status unit is
// emitted, and the completed turn is committed before the final answer unit
// reaches the caller, so an acknowledged answer is always recoverable from
// the store.
//
// Callers interact through Submit (streaming), SubmitSync (collect and
// return) and Cancel. One turn per conversation may be in flight at a time;
// a second Submit for the same conversation fails with core.ErrConflict.
package engine
