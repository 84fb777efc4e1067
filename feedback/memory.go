package feedback

import (
	"context"
	"sync"

	"github.com/shopquery/shopquery/core"
)

// InMemoryStore is a volatile FeedbackStore keeping records in a process
// local map. Safe for concurrent access.
type InMemoryStore struct {
	mu      sync.RWMutex
	byTrace map[string][]core.FeedbackRecord
}

// NewInMemoryStore constructs an empty in-memory feedback store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byTrace: make(map[string][]core.FeedbackRecord)}
}

// Append stores a new record.
func (s *InMemoryStore) Append(_ context.Context, rec core.FeedbackRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byTrace[rec.TraceID] = append(s.byTrace[rec.TraceID], rec)
	return nil
}

// ByTrace returns all records for a trace id in insertion order. Unknown
// trace ids yield an empty slice.
func (s *InMemoryStore) ByTrace(_ context.Context, traceID string) ([]core.FeedbackRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.byTrace[traceID]
	out := make([]core.FeedbackRecord, len(recs))
	copy(out, recs)
	return out, nil
}
