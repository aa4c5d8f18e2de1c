package session

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentloop/core"
)

// InMemoryStore is a volatile Store implementation keeping threads in a
// process local map. It is safe for concurrent access and best suited for
// tests or ephemeral demo servers. Threads are cloned on the way in and out to
// prevent external mutation of internal state.
type InMemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*core.Thread
}

// NewInMemoryStore constructs an empty in‑memory thread store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{threads: make(map[string]*core.Thread)}
}

// Load returns a clone of the stored thread.
func (s *InMemoryStore) Load(_ context.Context, id string) (*core.Thread, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	thread, ok := s.threads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrThreadNotFound, id)
	}
	return thread.Clone(), nil
}

// Save stores a clone of the provided thread snapshot.
func (s *InMemoryStore) Save(_ context.Context, thread *core.Thread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[thread.ID] = thread.Clone()
	return nil
}

// IDs returns the stored thread ids in sorted order.
func (s *InMemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
