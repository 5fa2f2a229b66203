package ledger

import (
	"context"
	"sync"
)

// InMemoryGateway records settlement requests instead of delivering them.
// Deterministic fake for tests and local runs without a broker.
type InMemoryGateway struct {
	mu       sync.Mutex
	requests []SettlementRequest
	failWith error
}

func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{}
}

// FailWith makes every subsequent request fail with err. Pass nil to restore
// normal behavior.
func (g *InMemoryGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failWith = err
}

func (g *InMemoryGateway) RequestSettlement(_ context.Context, req SettlementRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failWith != nil {
		return g.failWith
	}
	g.requests = append(g.requests, req)
	return nil
}

// Requests returns a snapshot of everything recorded so far.
func (g *InMemoryGateway) Requests() []SettlementRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SettlementRequest(nil), g.requests...)
}

func (g *InMemoryGateway) Close() {}
