package arbitration

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/requestcontext"
	"peershield/pkg/secrets"
)

// ArbitratorStore persists arbitrator profiles.
type ArbitratorStore interface {
	Save(ctx context.Context, arbitrator *Arbitrator) error
	FindByID(ctx context.Context, arbID id.ArbitratorID) (*Arbitrator, error)
	Update(ctx context.Context, arbitrator *Arbitrator) error
}

// Manager owns the arbitration pools and the quorum selection rules.
//
// The pool table is read-mostly: it changes only via rare administrative
// registration and removal, so reads go through an RWMutex.
type Manager struct {
	store   ArbitratorStore
	ballots *Ballots
	logger  *slog.Logger

	mu    sync.RWMutex
	pools map[jurisdiction.Code]*Pool
}

type Option func(*Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func NewManager(store ArbitratorStore, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("arbitrator store is required")
	}

	m := &Manager{
		store:   store,
		ballots: NewBallots(),
		logger:  slog.Default(),
		pools:   defaultPools(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// defaultPools builds the platform's standing arbitration pools.
func defaultPools() map[jurisdiction.Code]*Pool {
	return map[jurisdiction.Code]*Pool{
		jurisdiction.CodeGlobal: {
			Jurisdiction:       jurisdiction.CodeGlobal,
			MinimumArbitrators: 3,
			ConsensusThreshold: 2.0 / 3.0,
			Fees:               FeeStructure{Base: 50, PercentOfDispute: 0.05},
		},
		jurisdiction.CodeEU: {
			Jurisdiction:       jurisdiction.CodeEU,
			MinimumArbitrators: 3,
			ConsensusThreshold: 2.0 / 3.0,
			Fees:               FeeStructure{Base: 40, PercentOfDispute: 0.04},
		},
		jurisdiction.CodeUS: {
			Jurisdiction:       jurisdiction.CodeUS,
			MinimumArbitrators: 3,
			ConsensusThreshold: 2.0 / 3.0,
			Fees:               FeeStructure{Base: 60, PercentOfDispute: 0.05},
		},
		jurisdiction.CodeUK: {
			Jurisdiction:       jurisdiction.CodeUK,
			MinimumArbitrators: 3,
			ConsensusThreshold: 2.0 / 3.0,
			Fees:               FeeStructure{Base: 45, PercentOfDispute: 0.045},
		},
	}
}

// Ballots exposes the vote tally for the dispute lifecycle engine.
func (m *Manager) Ballots() *Ballots {
	return m.ballots
}

// Register creates an arbitrator profile, issues an API credential, and adds
// the arbitrator to each covered jurisdictional pool plus the global pool.
// The plaintext credential is returned exactly once.
func (m *Manager) Register(ctx context.Context, name string, jurisdictions []jurisdiction.Code, specializations []string) (*Arbitrator, string, error) {
	apiKey, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate arbitrator credential")
	}
	hash, err := secrets.Hash(apiKey)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash arbitrator credential")
	}

	arb, err := NewArbitrator(id.ArbitratorID(uuid.New()), name, jurisdictions, specializations, hash, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}

	if err := m.store.Save(ctx, arb); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to save arbitrator")
	}

	m.mu.Lock()
	for _, code := range arb.Jurisdictions {
		if pool, ok := m.pools[code]; ok {
			pool.Arbitrators = append(pool.Arbitrators, arb.ID)
		}
	}
	// Every arbitrator also serves the global pool.
	if global, ok := m.pools[jurisdiction.CodeGlobal]; ok && !contains(global.Arbitrators, arb.ID) {
		global.Arbitrators = append(global.Arbitrators, arb.ID)
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "arbitrator registered",
		"arbitrator_id", arb.ID,
		"jurisdictions", arb.Jurisdictions,
	)
	return arb, apiKey, nil
}

// Remove deactivates an arbitrator and withdraws them from every pool.
// Disputes they are already assigned to are unaffected.
func (m *Manager) Remove(ctx context.Context, arbID id.ArbitratorID) error {
	arb, err := m.store.FindByID(ctx, arbID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "arbitrator not found")
	}

	arb.Active = false
	if err := m.store.Update(ctx, arb); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update arbitrator")
	}

	m.mu.Lock()
	for _, pool := range m.pools {
		pool.Arbitrators = remove(pool.Arbitrators, arbID)
	}
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "arbitrator removed", "arbitrator_id", arbID)
	return nil
}

// Arbitrator returns a registered arbitrator profile.
func (m *Manager) Arbitrator(ctx context.Context, arbID id.ArbitratorID) (*Arbitrator, error) {
	arb, err := m.store.FindByID(ctx, arbID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "arbitrator not found")
	}
	return arb, nil
}

// VerifyCredential checks an arbitrator's API key.
func (m *Manager) VerifyCredential(ctx context.Context, arbID id.ArbitratorID, apiKey string) error {
	arb, err := m.store.FindByID(ctx, arbID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "arbitrator not found")
	}
	if !arb.Active {
		return dErrors.New(dErrors.CodeUnauthorized, "arbitrator is inactive")
	}
	if err := secrets.Verify(apiKey, arb.APIKeyHash); err != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "invalid arbitrator credential")
	}
	return nil
}

// poolFor picks the pool serving a dispute. Cross-border disputes always draw
// from the global pool for neutrality; single-jurisdiction disputes draw from
// that jurisdiction's pool when one exists, else global.
func (m *Manager) poolFor(crossBorder bool, jurisdictions []jurisdiction.Code) *Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !crossBorder && len(jurisdictions) == 1 {
		if pool, ok := m.pools[jurisdictions[0]]; ok {
			return pool
		}
	}
	return m.pools[jurisdiction.CodeGlobal]
}

// FeeStructure returns the fee parameters of the pool serving a jurisdiction
// set. Satisfies the resolution selector's pool parameter source.
func (m *Manager) FeeStructure(jurisdictions []jurisdiction.Code) (float64, float64) {
	pool := m.poolFor(len(jurisdictions) > 1, jurisdictions)
	return pool.Fees.Base, pool.Fees.PercentOfDispute
}

// ConsensusThreshold returns the consensus fraction of the pool serving a
// jurisdiction set.
func (m *Manager) ConsensusThreshold(crossBorder bool, jurisdictions []jurisdiction.Code) float64 {
	return m.poolFor(crossBorder, jurisdictions).ConsensusThreshold
}

// SelectArbitrators assembles a quorum for a dispute from the governing pool,
// preferring the least-loaded active arbitrators. Fails with
// CodePoolUnderCapacity when the pool cannot field the minimum count; the
// caller surfaces this to an operator rather than substituting arbitrators.
func (m *Manager) SelectArbitrators(ctx context.Context, crossBorder bool, jurisdictions []jurisdiction.Code) ([]id.ArbitratorID, float64, error) {
	pool := m.poolFor(crossBorder, jurisdictions)

	m.mu.RLock()
	candidates := make([]id.ArbitratorID, len(pool.Arbitrators))
	copy(candidates, pool.Arbitrators)
	minCount := pool.MinimumArbitrators
	threshold := pool.ConsensusThreshold
	m.mu.RUnlock()

	active := make([]*Arbitrator, 0, len(candidates))
	for _, arbID := range candidates {
		arb, err := m.store.FindByID(ctx, arbID)
		if err != nil || !arb.Active {
			continue
		}
		active = append(active, arb)
	}

	if len(active) < minCount {
		return nil, 0, dErrors.Newf(dErrors.CodePoolUnderCapacity,
			"pool %s has %d active arbitrators, %d required", pool.Jurisdiction, len(active), minCount)
	}

	sort.Slice(active, func(i, j int) bool {
		if active[i].CasesHandled != active[j].CasesHandled {
			return active[i].CasesHandled < active[j].CasesHandled
		}
		return active[i].ID.String() < active[j].ID.String()
	})

	selected := make([]id.ArbitratorID, 0, minCount)
	for _, arb := range active[:minCount] {
		arb.CasesHandled++
		if err := m.store.Update(ctx, arb); err != nil {
			return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update arbitrator caseload")
		}
		selected = append(selected, arb.ID)
	}

	m.logger.InfoContext(ctx, "quorum assembled",
		"pool", pool.Jurisdiction,
		"selected", len(selected),
	)
	return selected, threshold, nil
}

// ReleaseArbitrators returns caseload credit for a panel that was seated but
// never took up the dispute. Best effort; a missing arbitrator is skipped.
func (m *Manager) ReleaseArbitrators(ctx context.Context, arbIDs []id.ArbitratorID) {
	for _, arbID := range arbIDs {
		arb, err := m.store.FindByID(ctx, arbID)
		if err != nil {
			continue
		}
		if arb.CasesHandled > 0 {
			arb.CasesHandled--
		}
		if err := m.store.Update(ctx, arb); err != nil {
			m.logger.WarnContext(ctx, "failed to release arbitrator caseload",
				"arbitrator_id", arbID,
				"error", err,
			)
		}
	}
}

// Pools returns a snapshot of the current pool table.
func (m *Manager) Pools() []Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Pool, 0, len(m.pools))
	for _, pool := range m.pools {
		cp := *pool
		cp.Arbitrators = append([]id.ArbitratorID(nil), pool.Arbitrators...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Jurisdiction < out[j].Jurisdiction })
	return out
}

func contains(list []id.ArbitratorID, target id.ArbitratorID) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func remove(list []id.ArbitratorID, target id.ArbitratorID) []id.ArbitratorID {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
