// Package arbitration maintains the per-jurisdiction and global arbitrator
// pools, assembles quorums for disputes, and tallies arbitrator votes into a
// consensus outcome.
package arbitration

import (
	"time"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// Arbitrator is a registered adjudicator profile.
//
// Invariants:
//   - Name is non-empty
//   - At least one jurisdiction
//   - Reputation never decreases except via administrative reset
//   - CasesHandled only decreases when a seated panel is released unused
type Arbitrator struct {
	ID              id.ArbitratorID     `json:"id"`
	Name            string              `json:"name"`
	Jurisdictions   []jurisdiction.Code `json:"jurisdictions"`
	Specializations []string            `json:"specializations"`
	Reputation      float64             `json:"reputation"`
	CasesHandled    int                 `json:"cases_handled"`
	Active          bool                `json:"active"`
	APIKeyHash      string              `json:"-"`
	CreatedAt       time.Time           `json:"created_at"`
}

func NewArbitrator(arbID id.ArbitratorID, name string, jurisdictions []jurisdiction.Code, specializations []string, apiKeyHash string, now time.Time) (*Arbitrator, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "arbitrator name cannot be empty")
	}
	if len(jurisdictions) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "arbitrator must cover at least one jurisdiction")
	}
	for _, code := range jurisdictions {
		if !jurisdiction.Supported(code) {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported jurisdiction %q", code)
		}
	}
	return &Arbitrator{
		ID:              arbID,
		Name:            name,
		Jurisdictions:   jurisdictions,
		Specializations: specializations,
		Active:          true,
		APIKeyHash:      apiKeyHash,
		CreatedAt:       now,
	}, nil
}

// FeeStructure is a pool's flat-plus-percentage fee schedule, in USDC.
type FeeStructure struct {
	Base             float64 `json:"base"`
	PercentOfDispute float64 `json:"percent_of_dispute"`
}

// Pool is a set of eligible arbitrators scoped to one jurisdiction or to the
// whole platform. Mutated only by arbitrator registration and removal; read
// when assembling a quorum.
type Pool struct {
	Jurisdiction       jurisdiction.Code  `json:"jurisdiction"`
	Arbitrators        []id.ArbitratorID  `json:"arbitrators"`
	MinimumArbitrators int                `json:"minimum_arbitrators"`
	ConsensusThreshold float64            `json:"consensus_threshold"`
	Fees               FeeStructure       `json:"fee_structure"`
}

// Decision is an arbitrator's verdict on a dispute.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionDenied   Decision = "denied"
	DecisionPartial  Decision = "partial"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionDenied, DecisionPartial:
		return true
	}
	return false
}

// Vote is one arbitrator's recorded decision on a dispute.
type Vote struct {
	ArbitratorID id.ArbitratorID `json:"arbitrator_id"`
	Decision     Decision        `json:"decision"`
	Amount       float64         `json:"amount"`
	Reason       string          `json:"reason"`
	CastAt       time.Time       `json:"cast_at"`
}

// Outcome is the finalized consensus of a voting round. Dissenting votes are
// retained in the signature list but do not block finalization.
type Outcome struct {
	Decision     Decision          `json:"decision"`
	Amount       float64           `json:"amount"`
	Reason       string            `json:"reason"`
	Signatures   []id.ArbitratorID `json:"signatures"`
	FinalizedAt  time.Time         `json:"finalized_at"`
}
