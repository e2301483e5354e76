package ledger

import (
	"context"
	"sync"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *entry
	s.entries = append(s.entries, &stored)
	return nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]*Entry, error) {
	return s.newestFirst(limit, func(*Entry) bool { return true }), nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actor string, limit int) ([]*Entry, error) {
	return s.newestFirst(limit, func(e *Entry) bool { return e.Actor == actor }), nil
}

// newestFirst walks insertion order backwards, so ties on timestamp keep append order.
func (s *InMemoryStore) newestFirst(limit int, keep func(*Entry) bool) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Entry{}
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(s.entries[i]) {
			copied := *s.entries[i]
			out = append(out, &copied)
		}
	}
	return out
}
