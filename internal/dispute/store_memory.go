package dispute

import (
	"context"
	"sync"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
)

// InMemoryStore keeps disputes in process memory with one lock per dispute,
// so transitions on different disputes never contend.
type InMemoryStore struct {
	mu       sync.RWMutex
	disputes map[id.DisputeID]*Dispute
	locks    map[id.DisputeID]*sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		disputes: make(map[id.DisputeID]*Dispute),
		locks:    make(map[id.DisputeID]*sync.Mutex),
	}
}

func (s *InMemoryStore) Save(_ context.Context, d *Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.disputes[d.ID]; exists {
		return sentinel.ErrConflict
	}
	s.disputes[d.ID] = copyDispute(d)
	s.locks[d.ID] = &sync.Mutex{}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, disputeID id.DisputeID) (*Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disputes[disputeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyDispute(d), nil
}

func (s *InMemoryStore) ListByParty(_ context.Context, partyID id.PartyID) ([]*Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Dispute
	for _, d := range s.disputes {
		if d.IsParty(partyID) {
			out = append(out, copyDispute(d))
		}
	}
	return out, nil
}

func (s *InMemoryStore) All(_ context.Context) ([]*Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Dispute, 0, len(s.disputes))
	for _, d := range s.disputes {
		out = append(out, copyDispute(d))
	}
	return out, nil
}

// Execute runs validate-then-mutate under the dispute's lock. The callbacks
// see a working copy; the store commits it only when validation passes.
func (s *InMemoryStore) Execute(_ context.Context, disputeID id.DisputeID, validate func(*Dispute) error, mutate func(*Dispute)) (*Dispute, error) {
	s.mu.RLock()
	lock, ok := s.locks[disputeID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.disputes[disputeID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	working := copyDispute(current)
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	working.Version++

	s.mu.Lock()
	s.disputes[disputeID] = copyDispute(working)
	s.mu.Unlock()
	return working, nil
}

func copyDispute(d *Dispute) *Dispute {
	cp := *d
	cp.Evidence = append([]EvidenceRef(nil), d.Evidence...)
	cp.Arbitrators = append([]id.ArbitratorID(nil), d.Arbitrators...)
	cp.Jurisdictions = append([]jurisdiction.Code(nil), d.Jurisdictions...)
	cp.History = append([]Resolution(nil), d.History...)
	if d.Resolution != nil {
		res := *d.Resolution
		res.Signatures = append([]id.ArbitratorID(nil), d.Resolution.Signatures...)
		cp.Resolution = &res
	}
	return &cp
}
