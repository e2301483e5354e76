package company

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	id "trustbridge/pkg/domain"
	"trustbridge/pkg/platform/sentinel"
)

// InMemoryStore keeps companies in memory for local runs and tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	companies map[id.CompanyID]*Company
	nameIdx   map[string]id.CompanyID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		companies: make(map[id.CompanyID]*Company),
		nameIdx:   make(map[string]id.CompanyID),
	}
}

func (s *InMemoryStore) Create(_ context.Context, c *Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(c.Name)
	if _, exists := s.nameIdx[lower]; exists {
		return fmt.Errorf("company name must be unique: %w", sentinel.ErrConflict)
	}
	stored := *c
	s.companies[c.ID] = &stored
	s.nameIdx[lower] = c.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, companyID id.CompanyID) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.companies[companyID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, fmt.Errorf("company not found: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) FindByName(_ context.Context, name string) (*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if companyID, ok := s.nameIdx[strings.ToLower(strings.TrimSpace(name))]; ok {
		copied := *s.companies[companyID]
		return &copied, nil
	}
	return nil, fmt.Errorf("company not found: %w", sentinel.ErrNotFound)
}

// List orders by name so responses are stable.
func (s *InMemoryStore) List(_ context.Context) ([]*Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Company, 0, len(s.companies))
	for _, c := range s.companies {
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}
