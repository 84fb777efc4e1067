// Package cart holds per-conversation shopping cart state backing the cart
// tools. The service is process-local and safe for concurrent use; mutations
// are idempotent under an operation key so the executor may retry a mutating
// call exactly once when the first attempt provably never applied.
package cart

import (
	"sort"
	"sync"
)

// Item is one cart line.
type Item struct {
	SKU      string `json:"sku"`
	Name     string `json:"name,omitempty"`
	Quantity int    `json:"quantity"`
}

// Service manages carts keyed by conversation id.
type Service struct {
	mu    sync.RWMutex
	carts map[string]*state
}

type state struct {
	items   map[string]Item
	applied map[string]bool // operation keys already applied
}

// NewService creates an empty cart service.
func NewService() *Service {
	return &Service{carts: map[string]*state{}}
}

func (s *Service) stateLocked(conversationID string) *state {
	st, ok := s.carts[conversationID]
	if !ok {
		st = &state{items: map[string]Item{}, applied: map[string]bool{}}
		s.carts[conversationID] = st
	}
	return st
}

// View returns the current cart snapshot.
func (s *Service) View(conversationID string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.carts[conversationID]
	if !ok {
		return nil
	}
	return st.snapshot()
}

// Add puts quantity units of sku into the cart. A repeated opKey is a no-op
// returning the post-apply snapshot, making retries safe.
func (s *Service) Add(conversationID, opKey, sku, name string, quantity int) []Item {
	if quantity <= 0 {
		quantity = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(conversationID)
	if opKey != "" && st.applied[opKey] {
		return st.snapshot()
	}
	item := st.items[sku]
	item.SKU = sku
	if name != "" {
		item.Name = name
	}
	item.Quantity += quantity
	st.items[sku] = item
	if opKey != "" {
		st.applied[opKey] = true
	}
	return st.snapshot()
}

// Remove deletes sku from the cart. Idempotent under opKey like Add.
func (s *Service) Remove(conversationID, opKey, sku string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stateLocked(conversationID)
	if opKey != "" && st.applied[opKey] {
		return st.snapshot()
	}
	delete(st.items, sku)
	if opKey != "" {
		st.applied[opKey] = true
	}
	return st.snapshot()
}

// Applied reports whether the operation key has taken effect. The executor
// consults this before retrying a mutating call.
func (s *Service) Applied(conversationID, opKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.carts[conversationID]
	return ok && st.applied[opKey]
}

func (st *state) snapshot() []Item {
	items := make([]Item, 0, len(st.items))
	for _, item := range st.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].SKU < items[j].SKU })
	return items
}
