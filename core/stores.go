package core

import (
	"context"
	"time"
)

// CheckpointStore persists conversations and their turns. Implementations
// must be safe for concurrent use across conversations and must serialize
// writes within a single conversation: a later writer observes the prior
// turn's committed state, and AppendTurn with a stale index returns
// ErrConflict.
//
// Reads return the latest committed snapshot; returned values are defensive
// copies the caller may mutate freely.
type CheckpointStore interface {
	// Load returns the conversation or ErrNotFound.
	Load(ctx context.Context, conversationID string) (*Conversation, error)

	// LoadOrCreate returns the conversation, creating an empty record on
	// first use.
	LoadOrCreate(ctx context.Context, conversationID string) (*Conversation, error)

	// AppendTurn commits a new turn. turn.Index must equal the current
	// number of committed turns or ErrConflict is returned.
	AppendTurn(ctx context.Context, conversationID string, turn *Turn) error

	// UpdateTurn overwrites the turn identified by turn.TraceID with the
	// given snapshot. Returns ErrNotFound for unknown trace ids.
	UpdateTurn(ctx context.Context, turn *Turn) error

	// TurnByTrace returns the turn with the given trace id or ErrNotFound.
	TurnByTrace(ctx context.Context, traceID string) (*Turn, error)
}

// FeedbackRecord binds a feedback submission to the turn that produced it via
// trace id. Records are append-only and never mutate the referenced turn;
// multiple records per trace id are retained.
type FeedbackRecord struct {
	ID        string    `json:"id"`
	TraceID   string    `json:"trace_id"`
	Sentiment Sentiment `json:"sentiment"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Sentiment is the polarity of a feedback submission.
type Sentiment string

// Valid sentiments.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is a known sentiment value.
func (s Sentiment) Valid() bool { return s == SentimentPositive || s == SentimentNegative }

// FeedbackStore persists feedback records keyed by trace id. Safe for
// concurrent use.
type FeedbackStore interface {
	// Append stores a new record.
	Append(ctx context.Context, rec FeedbackRecord) error

	// ByTrace returns all records for a trace id in insertion order. An
	// unknown trace id yields an empty slice, not an error; existence
	// checks belong to the correlator.
	ByTrace(ctx context.Context, traceID string) ([]FeedbackRecord, error)
}
