package core

import (
	"time"

	"github.com/google/uuid"
)

// TurnStatus enumerates the orchestrator states a turn moves through.
// Transitions are monotonic except for the bounded re-planning loop, which is
// a self-transition within StatusExecuting.
type TurnStatus string

const (
	// StatusReceived is the initial state, set the instant a query is
	// accepted and its trace id minted.
	StatusReceived TurnStatus = "received"
	// StatusIntentClassified means the router produced a non-null intent.
	StatusIntentClassified TurnStatus = "intent_classified"
	// StatusPlanned means the planner produced a plan (possibly empty for
	// out-of-scope queries).
	StatusPlanned TurnStatus = "planned"
	// StatusExecuting means plan steps are being dispatched, including any
	// re-planning iterations.
	StatusExecuting TurnStatus = "executing"
	// StatusSynthesizing means tool execution finished (by completion or
	// budget exhaustion) and the answer is being generated.
	StatusSynthesizing TurnStatus = "synthesizing"
	// StatusStreaming means the synthesizer yielded its first output unit.
	StatusStreaming TurnStatus = "streaming"
	// StatusCompleted is terminal: the full answer was streamed and the
	// final checkpoint write acknowledged.
	StatusCompleted TurnStatus = "completed"
	// StatusFailed is terminal: an unrecoverable error ended the turn.
	StatusFailed TurnStatus = "failed"
	// StatusCancelled is terminal: the caller disconnected mid-turn.
	StatusCancelled TurnStatus = "cancelled"
)

// Terminal reports whether the status is one of the three terminal states.
func (s TurnStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// statusRank orders states for monotonicity checks. Terminal states share the
// highest rank since any state may jump straight to one of them.
var statusRank = map[TurnStatus]int{
	StatusReceived:         0,
	StatusIntentClassified: 1,
	StatusPlanned:          2,
	StatusExecuting:        3,
	StatusSynthesizing:     4,
	StatusStreaming:        5,
	StatusCompleted:        6,
	StatusFailed:           6,
	StatusCancelled:        6,
}

// CanTransition reports whether moving from s to next respects the monotonic
// state machine. Executing -> Executing is allowed (re-planning loop); no
// transition out of a terminal state is.
func (s TurnStatus) CanTransition(next TurnStatus) bool {
	if s.Terminal() {
		return false
	}
	if next.Terminal() {
		return true
	}
	if s == StatusExecuting && next == StatusExecuting {
		return true
	}
	return statusRank[next] > statusRank[s]
}

// Intent is the router's classification of a user query. Exactly one Intent
// is produced per turn before planning begins.
type Intent struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
}

// Well-known intent labels. Tools and planner rules key off these; additional
// labels may be introduced by custom routers without engine changes.
const (
	IntentProductQuery = "product_query"
	IntentReviewQuery  = "review_query"
	IntentCartAction   = "cart_action"
	IntentOutOfScope   = "out_of_scope"
)

// InScope reports whether the intent should produce a plan at all.
func (i Intent) InScope() bool { return i.Label != IntentOutOfScope }

// Turn is the full record of one user query through to its terminal outcome.
// It is created at query arrival, mutated only by the engine driving it, and
// append-only once a terminal status is committed.
type Turn struct {
	ConversationID string     `json:"conversation_id"`
	Index          int        `json:"index"`
	TraceID        string     `json:"trace_id"`
	Query          string     `json:"query"`
	Intent         *Intent    `json:"intent,omitempty"`
	Plan           *Plan      `json:"plan,omitempty"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	Answer         string     `json:"answer,omitempty"`
	Status         TurnStatus `json:"status"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewTurn creates a turn in StatusReceived with a freshly minted trace id.
// The trace id is assigned exactly once, here, before any tool dispatch.
func NewTurn(conversationID string, index int, query string) *Turn {
	now := time.Now().UTC()
	return &Turn{
		ConversationID: conversationID,
		Index:          index,
		TraceID:        NewTraceID(),
		Query:          query,
		Status:         StatusReceived,
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy safe for independent mutation.
func (t *Turn) Clone() *Turn {
	clone := *t
	if t.Intent != nil {
		in := *t.Intent
		clone.Intent = &in
	}
	if t.Plan != nil {
		clone.Plan = t.Plan.Clone()
	}
	clone.ToolCalls = make([]ToolCall, len(t.ToolCalls))
	copy(clone.ToolCalls, t.ToolCalls)
	return &clone
}

// Conversation is an ordered sequence of turns plus accumulated memory used
// as planner/router context. Owned by the checkpoint store.
type Conversation struct {
	ID      string         `json:"id"`
	Turns   []Turn         `json:"turns"`
	Memory  map[string]any `json:"memory,omitempty"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
}

// NewConversation creates an empty conversation record.
func NewConversation(id string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{ID: id, Memory: map[string]any{}, Created: now, Updated: now}
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:      c.ID,
		Turns:   make([]Turn, 0, len(c.Turns)),
		Memory:  make(map[string]any, len(c.Memory)),
		Created: c.Created,
		Updated: c.Updated,
	}
	for i := range c.Turns {
		clone.Turns = append(clone.Turns, *c.Turns[i].Clone())
	}
	for k, v := range c.Memory {
		clone.Memory[k] = v
	}
	return clone
}

// History returns the completed exchanges of the conversation as (query,
// answer) pairs, oldest first. Non-terminal and failed turns are skipped so
// models never see half-finished context.
func (c *Conversation) History() []Exchange {
	var out []Exchange
	for i := range c.Turns {
		t := &c.Turns[i]
		if t.Status != StatusCompleted {
			continue
		}
		out = append(out, Exchange{Query: t.Query, Answer: t.Answer})
	}
	return out
}

// Exchange is one completed query/answer pair used as conversational context.
type Exchange struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

// NewTraceID mints a globally unique trace identifier. Trace ids correlate
// feedback and logs with the turn that produced them.
func NewTraceID() string { return uuid.NewString() }
