package sandbox

import (
	"context"
	"sync"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
)

// InMemoryStore keeps sandbox registrations in process memory. Suitable for
// tests and single-node deployments.
type InMemoryStore struct {
	mu            sync.RWMutex
	registrations map[id.RegistrationID]*Registration
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{registrations: make(map[id.RegistrationID]*Registration)}
}

func (s *InMemoryStore) Save(_ context.Context, reg *Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.registrations[reg.ID]; exists {
		return sentinel.ErrConflict
	}
	s.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, regID id.RegistrationID) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.registrations[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRegistration(reg), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	regs := make([]*Registration, 0, len(s.registrations))
	for _, reg := range s.registrations {
		regs = append(regs, copyRegistration(reg))
	}
	return regs, nil
}

func (s *InMemoryStore) Update(_ context.Context, reg *Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registrations[reg.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

// copyRegistration deep-copies the slices so callers cannot mutate stored state.
func copyRegistration(reg *Registration) *Registration {
	cp := *reg
	cp.Reporting = append([]ReportingEntry(nil), reg.Reporting...)
	cp.Limitations.RestrictedFeatures = append([]string(nil), reg.Limitations.RestrictedFeatures...)
	cp.Limitations.AllowedJurisdictions = append([]jurisdiction.Code(nil), reg.Limitations.AllowedJurisdictions...)
	cp.Limitations.RequiredDisclosures = append([]string(nil), reg.Limitations.RequiredDisclosures...)
	return &cp
}
