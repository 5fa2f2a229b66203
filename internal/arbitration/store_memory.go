package arbitration

import (
	"context"
	"sync"

	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
)

// InMemoryStore keeps arbitrator profiles in process memory. It favors
// clarity over performance and backs unit tests and single-node deployments.
type InMemoryStore struct {
	mu          sync.RWMutex
	arbitrators map[id.ArbitratorID]*Arbitrator
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{arbitrators: make(map[id.ArbitratorID]*Arbitrator)}
}

func (s *InMemoryStore) Save(_ context.Context, arbitrator *Arbitrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.arbitrators[arbitrator.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *arbitrator
	s.arbitrators[arbitrator.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, arbID id.ArbitratorID) (*Arbitrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arb, ok := s.arbitrators[arbID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *arb
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, arbitrator *Arbitrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.arbitrators[arbitrator.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *arbitrator
	s.arbitrators[arbitrator.ID] = &cp
	return nil
}
