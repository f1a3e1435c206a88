package capture

import (
	"sync"

	"github.com/xkilldash9x/campaign-probe/api/schemas"
)

// Store is an append-only, order-preserving sequence of captured responses.
// It lives as long as the browser session it was created for.
type Store struct {
	mu        sync.RWMutex
	responses []schemas.CapturedResponse
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{responses: make([]schemas.CapturedResponse, 0)}
}

// Append adds r to the end of the store. Duplicates are kept.
func (s *Store) Append(r schemas.CapturedResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
}

// All returns a snapshot of every captured response in insertion order.
// Mutating the returned slice does not affect the store.
func (s *Store) All() []schemas.CapturedResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schemas.CapturedResponse, len(s.responses))
	copy(out, s.responses)
	return out
}

// Len returns the number of captured responses.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.responses)
}
