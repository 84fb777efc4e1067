package core

import (
	"time"

	"github.com/google/uuid"
)

// UnitType discriminates the kinds of output units streamed to the caller.
type UnitType string

const (
	// UnitStatus announces a state-machine transition (informational).
	UnitStatus UnitType = "status"
	// UnitDelta carries an incremental fragment of the answer text.
	UnitDelta UnitType = "delta"
	// UnitFinal is the single end-of-turn marker carrying the complete
	// answer, trace id and terminal status. Emitted exactly once per turn.
	UnitFinal UnitType = "final"
	// UnitError is a terminal error unit; like UnitFinal it ends the stream.
	UnitError UnitType = "error"
)

// Unit is one element of the ordered output stream produced for a turn.
// After emission a unit is immutable. The stream for a turn is finite,
// consumed once, and always ends with exactly one UnitFinal or UnitError.
type Unit struct {
	ID        string     `json:"id"`
	TraceID   string     `json:"trace_id"`
	Type      UnitType   `json:"type"`
	Text      string     `json:"text,omitempty"`
	Status    TurnStatus `json:"status,omitempty"`
	Answer    string     `json:"answer,omitempty"`
	Error     string     `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Terminal reports whether this unit closes the stream.
func (u Unit) Terminal() bool { return u.Type == UnitFinal || u.Type == UnitError }

func newUnit(traceID string, typ UnitType) Unit {
	return Unit{ID: uuid.NewString(), TraceID: traceID, Type: typ, Timestamp: time.Now().UTC()}
}

// NewStatusUnit creates an informational state-transition unit.
func NewStatusUnit(traceID string, status TurnStatus) Unit {
	u := newUnit(traceID, UnitStatus)
	u.Status = status
	return u
}

// NewDeltaUnit creates an incremental answer fragment unit.
func NewDeltaUnit(traceID, text string) Unit {
	u := newUnit(traceID, UnitDelta)
	u.Text = text
	return u
}

// NewFinalUnit creates the end-of-turn marker with the complete answer.
func NewFinalUnit(traceID, answer string, status TurnStatus) Unit {
	u := newUnit(traceID, UnitFinal)
	u.Answer = answer
	u.Status = status
	return u
}

// NewErrorUnit creates a terminal error unit with a human-readable reason.
func NewErrorUnit(traceID, reason string, status TurnStatus) Unit {
	u := newUnit(traceID, UnitError)
	u.Error = reason
	u.Status = status
	return u
}
