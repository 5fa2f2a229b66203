// Package registry holds clients for external reference registries consulted
// during compliance evaluation. Mock implementations use deterministic data
// and a configurable latency to mimic real-world calls.
package registry

import (
	"context"
	"time"

	id "peershield/pkg/domain"
)

// SanctionsRecord is one screening verdict for a party.
type SanctionsRecord struct {
	PartyID id.PartyID `json:"party_id"`
	Listed  bool       `json:"listed"`
	Source  string     `json:"source"`
}

// SanctionsClient queries a sanctions list. The interface is kept small so
// tests can stub quickly.
type SanctionsClient interface {
	Check(ctx context.Context, partyID id.PartyID) (SanctionsRecord, error)
}

// MockSanctionsClient returns a deterministic verdict after an optional delay.
type MockSanctionsClient struct {
	Latency time.Duration
	// Listed controls deterministic sanctioning for tests.
	Listed bool
}

func (c MockSanctionsClient) Check(_ context.Context, partyID id.PartyID) (SanctionsRecord, error) {
	time.Sleep(c.Latency)
	return SanctionsRecord{
		PartyID: partyID,
		Listed:  c.Listed,
		Source:  "mock_sanctions",
	}, nil
}

// MockGeoClient implements jurisdiction.Detector with a fixed location.
type MockGeoClient struct {
	Latency time.Duration
	Country string
	Region  string
}

func (c MockGeoClient) Detect(_ context.Context, _ id.PartyID) (string, string, error) {
	time.Sleep(c.Latency)
	return c.Country, c.Region, nil
}
