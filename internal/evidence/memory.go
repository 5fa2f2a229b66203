package evidence

import (
	"context"
	"sync"

	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
)

// InMemoryStore is the deterministic Store used in tests and single-node
// deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	payloads map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{payloads: make(map[string][]byte)}
}

func (s *InMemoryStore) Store(_ context.Context, _ id.PartyID, payload []byte) (string, error) {
	if err := validatePayload(payload); err != nil {
		return "", err
	}

	hash := Hash(payload)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[hash] = append([]byte(nil), payload...)
	return hash, nil
}

func (s *InMemoryStore) Retrieve(_ context.Context, hash string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.payloads[hash]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}
