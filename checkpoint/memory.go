package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/shopquery/shopquery/core"
)

// traceRef locates a turn inside a conversation.
type traceRef struct {
	conversationID string
	index          int
}

// InMemoryStore is a volatile CheckpointStore keeping conversations in a
// process local map. It is safe for concurrent access. Every read returns a
// clone so callers cannot mutate committed state, and every write stores a
// clone of the caller's snapshot.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*core.Conversation
	traces        map[string]traceRef
}

// NewInMemoryStore constructs an empty in-memory checkpoint store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*core.Conversation),
		traces:        make(map[string]traceRef),
	}
}

// Load returns a clone of the conversation or core.ErrNotFound.
func (s *InMemoryStore) Load(_ context.Context, conversationID string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return conv.Clone(), nil
}

// LoadOrCreate returns the conversation, creating an empty record on first
// use.
func (s *InMemoryStore) LoadOrCreate(_ context.Context, conversationID string) (*core.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = core.NewConversation(conversationID)
		s.conversations[conversationID] = conv
	}
	return conv.Clone(), nil
}

// AppendTurn commits a new turn. The turn's index must equal the current
// number of committed turns; anything else means the caller raced another
// writer and gets core.ErrConflict.
func (s *InMemoryStore) AppendTurn(_ context.Context, conversationID string, turn *core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		conv = core.NewConversation(conversationID)
		s.conversations[conversationID] = conv
	}
	if turn.Index != len(conv.Turns) {
		return core.ErrConflict
	}
	conv.Turns = append(conv.Turns, *turn.Clone())
	conv.Updated = time.Now().UTC()
	s.traces[turn.TraceID] = traceRef{conversationID: conversationID, index: turn.Index}
	return nil
}

// UpdateTurn overwrites the turn identified by turn.TraceID with the given
// snapshot.
func (s *InMemoryStore) UpdateTurn(_ context.Context, turn *core.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.traces[turn.TraceID]
	if !ok {
		return core.ErrNotFound
	}
	conv := s.conversations[ref.conversationID]
	conv.Turns[ref.index] = *turn.Clone()
	conv.Updated = time.Now().UTC()
	return nil
}

// TurnByTrace returns a clone of the turn with the given trace id.
func (s *InMemoryStore) TurnByTrace(_ context.Context, traceID string) (*core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.traces[traceID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return s.conversations[ref.conversationID].Turns[ref.index].Clone(), nil
}
