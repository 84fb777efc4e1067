package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so each stage can decide locally whether to
// retry, degrade or fail the turn.
type ErrorKind string

const (
	// KindValidation covers malformed input, unknown tools or bad
	// arguments. Never retried, surfaced immediately.
	KindValidation ErrorKind = "validation"
	// KindTransient covers timeouts and transient upstream failures.
	// Retried with bounded backoff.
	KindTransient ErrorKind = "transient"
	// KindCapability covers well-formed tool failures such as "no results".
	// Not an error to the engine; treated as an empty context contribution.
	KindCapability ErrorKind = "capability"
	// KindPersistence covers checkpoint write failures. Retried once, then
	// the turn fails.
	KindPersistence ErrorKind = "persistence"
	// KindBudget covers re-planning or wall-clock budget exhaustion. Never
	// fatal; forces degraded synthesis.
	KindBudget ErrorKind = "budget"
)

// Error is the classified error type flowing between pipeline stages.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates a classified error wrapping an optional cause.
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// KindOf returns the classification of err, defaulting to KindTransient for
// unclassified errors so unknown failures err on the side of being retried
// within bounds rather than killing the turn.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind ErrorKind) bool { return err != nil && KindOf(err) == kind }

// Sentinel errors shared by the store contracts.
var (
	// ErrNotFound signals a missing conversation, turn or trace id.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a violated per-conversation write serialization
	// guarantee (e.g. concurrent turns or a stale turn index).
	ErrConflict = errors.New("conflict")
)
