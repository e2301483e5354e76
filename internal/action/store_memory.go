package action

import (
	"context"
	"maps"
	"sync"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	actions []*Action
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, action *Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, clone(action))
	return nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]*Action, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Action{}
	for i := len(s.actions) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, clone(s.actions[i]))
	}
	return out, nil
}

func clone(a *Action) *Action {
	copied := *a
	copied.Details = maps.Clone(a.Details)
	return &copied
}
