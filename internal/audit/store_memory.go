package audit

import (
	"context"
	"sync"

	id "peershield/pkg/domain"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.DisputeID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.DisputeID][]Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.DisputeID][]Event)
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.DisputeID] = append(s.events[event.DisputeID], event)
	return nil
}

func (s *InMemoryStore) ListByDispute(_ context.Context, disputeID id.DisputeID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[disputeID]...), nil
}

// ListAll returns every recorded event across all disputes. Events with no
// dispute association are keyed under the zero DisputeID.
func (s *InMemoryStore) ListAll(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}
