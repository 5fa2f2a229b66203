// Package resolution selects the adjudication mechanism for a dispute and
// computes its fee and timeframe parameters. All functions are pure domain
// logic: no I/O, no side effects.
package resolution

import (
	"math"

	"peershield/internal/jurisdiction"
	dErrors "peershield/pkg/domain-errors"
)

// Mechanism is one of the three escalating adjudication mechanisms.
type Mechanism string

const (
	OnChainArbitration Mechanism = "on_chain_arbitration"
	HybridArbitration  Mechanism = "hybrid_arbitration"
	JudicialReview     Mechanism = "judicial_review"
)

// Valid reports whether m is a known mechanism.
func (m Mechanism) Valid() bool {
	switch m {
	case OnChainArbitration, HybridArbitration, JudicialReview:
		return true
	}
	return false
}

// Params are the fixed rules attached to a mechanism.
type Params struct {
	Name                 string
	MaxAmount            float64
	MinArbitrators       int
	ConsensusThreshold   float64
	ResponseWindowDays   int
	ResolutionTargetDays int
	ComplexityMultiplier float64
	Appealable           bool
	CrossBorderSupport   bool
}

var mechanismParams = map[Mechanism]Params{
	OnChainArbitration: {
		Name:                 "On-Chain Arbitration",
		MaxAmount:            1000,
		MinArbitrators:       3,
		ConsensusThreshold:   2.0 / 3.0,
		ResponseWindowDays:   7,
		ResolutionTargetDays: 14,
		ComplexityMultiplier: 1.0,
		Appealable:           true,
		CrossBorderSupport:   true,
	},
	HybridArbitration: {
		Name:                 "Hybrid Arbitration",
		MaxAmount:            10000,
		MinArbitrators:       3,
		ConsensusThreshold:   2.0 / 3.0,
		ResponseWindowDays:   14,
		ResolutionTargetDays: 30,
		ComplexityMultiplier: 1.5,
		Appealable:           true,
		CrossBorderSupport:   true,
	},
	JudicialReview: {
		Name:                 "Judicial Review",
		MaxAmount:            math.Inf(1),
		MinArbitrators:       1,
		ConsensusThreshold:   1.0,
		ResponseWindowDays:   30,
		ResolutionTargetDays: 90,
		ComplexityMultiplier: 2.0,
		Appealable:           true,
		CrossBorderSupport:   false,
	},
}

// crossBorderMultiplier is applied to fees when more than one jurisdiction
// participates in a dispute.
const crossBorderMultiplier = 1.25

// ParamsFor returns the fixed rules for a mechanism.
func ParamsFor(m Mechanism) (Params, error) {
	p, ok := mechanismParams[m]
	if !ok {
		return Params{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown resolution mechanism %q", m)
	}
	return p, nil
}

// Select picks the adjudication mechanism for a dispute.
//
// Deterministic threshold ladder: small single-jurisdiction amounts stay on
// chain; medium amounts, or any cross-border dispute regardless of amount,
// go to hybrid arbitration; everything else goes to judicial review.
// Cross-border disputes never get ON_CHAIN_ARBITRATION because it lacks the
// enforcement reach those disputes need.
func Select(amount float64, crossBorder bool) Mechanism {
	if !crossBorder && amount <= mechanismParams[OnChainArbitration].MaxAmount {
		return OnChainArbitration
	}
	if amount <= mechanismParams[HybridArbitration].MaxAmount || crossBorder {
		return HybridArbitration
	}
	return JudicialReview
}

// Escalate returns the next mechanism up the ladder for an appeal.
// Judicial review is terminal.
func Escalate(m Mechanism) (Mechanism, error) {
	switch m {
	case OnChainArbitration:
		return HybridArbitration, nil
	case HybridArbitration:
		return JudicialReview, nil
	case JudicialReview:
		return "", dErrors.New(dErrors.CodeNoFurtherAppeal, "no further appeal mechanism available")
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown resolution mechanism %q", m)
	}
}

// PoolParams supplies the fee structure of the arbitration pool serving a set
// of jurisdictions. Implemented by the arbitration pool manager; the
// jurisdiction-specific pool is used when one of the participating
// jurisdictions has one, otherwise the global pool.
type PoolParams interface {
	FeeStructure(jurisdictions []jurisdiction.Code) (baseFee, percentOfDispute float64)
}

// CalculateFee computes the dispute resolution fee:
//
//	fee = (poolBase + amount*poolPercent) * complexity(mechanism) * crossBorder(len(jurisdictions) > 1)
func CalculateFee(amount float64, m Mechanism, jurisdictions []jurisdiction.Code, pool PoolParams) (float64, error) {
	if amount < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "dispute amount cannot be negative")
	}
	params, err := ParamsFor(m)
	if err != nil {
		return 0, err
	}

	base, percent := pool.FeeStructure(jurisdictions)

	fee := base + amount*percent
	fee *= params.ComplexityMultiplier
	if len(jurisdictions) > 1 {
		fee *= crossBorderMultiplier
	}
	return fee, nil
}

// Timeframe is the response window and resolution target for a mechanism,
// in days.
type Timeframe struct {
	ResponseWindowDays   int
	ResolutionTargetDays int
}

// TimeframeFor returns the timeframe attached to a mechanism.
func TimeframeFor(m Mechanism) (Timeframe, error) {
	params, err := ParamsFor(m)
	if err != nil {
		return Timeframe{}, err
	}
	return Timeframe{
		ResponseWindowDays:   params.ResponseWindowDays,
		ResolutionTargetDays: params.ResolutionTargetDays,
	}, nil
}
