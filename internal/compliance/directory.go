package compliance

import (
	"context"
	"sync"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
)

// Profile is the compliance-relevant view of a party: where they are and how
// far their identity verification has progressed.
type Profile struct {
	Jurisdiction jurisdiction.UserJurisdiction
	KYC          KYCTier
}

// ProfileDirectory resolves a party to its compliance profile. The second
// return value reports whether a profile exists; the gate fails closed when
// it does not.
type ProfileDirectory interface {
	Profile(ctx context.Context, partyID id.PartyID) (Profile, bool, error)
}

// InMemoryProfiles is a ProfileDirectory backed by process memory.
type InMemoryProfiles struct {
	mu       sync.RWMutex
	profiles map[id.PartyID]Profile
}

func NewInMemoryProfiles() *InMemoryProfiles {
	return &InMemoryProfiles{profiles: make(map[id.PartyID]Profile)}
}

func (d *InMemoryProfiles) Upsert(partyID id.PartyID, profile Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if profile.KYC == "" {
		profile.KYC = TierNone
	}
	d.profiles[partyID] = profile
}

func (d *InMemoryProfiles) Profile(_ context.Context, partyID id.PartyID) (Profile, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	profile, ok := d.profiles[partyID]
	return profile, ok, nil
}
