// Package jurisdiction holds the static regulatory reference data for every
// supported jurisdiction and resolves a party's country code to one of them.
//
// The registry is immutable reference data: records are created at process
// start and never mutated at runtime, so they may be read concurrently
// without locking.
package jurisdiction

import (
	"math"

	dErrors "peershield/pkg/domain-errors"
)

// Code identifies a supported jurisdiction.
type Code string

const (
	CodeEU     Code = "EU"
	CodeUS     Code = "US"
	CodeUK     Code = "UK"
	CodeSG     Code = "SG"
	CodeGlobal Code = "GLOBAL"
)

// CapitalRequirements captures the solvency rules a jurisdiction imposes on
// the platform's reserve pool.
type CapitalRequirements struct {
	BaseReserveRatio      float64
	MinCapitalRequirement float64
	RiskBasedCapital      bool
}

// ClaimProcessing captures the claim payout thresholds for a jurisdiction.
// Amounts are USDC.
type ClaimProcessing struct {
	MaxAutomaticPayout       float64
	MandatoryReviewThreshold float64
	AppealPeriodDays         int
}

// KYCThresholds are the monetary ceilings for each verification tier.
// A requested amount at or below Basic needs basic verification, at or below
// Enhanced needs enhanced verification, and anything above needs full
// verification (Full is unbounded).
type KYCThresholds struct {
	Basic    float64
	Enhanced float64
	Full     float64
}

// Jurisdiction is an immutable record of one jurisdiction's regulatory
// parameters.
type Jurisdiction struct {
	Code                 Code
	Name                 string
	IsEU                 bool
	RegulatoryFrameworks []string
	Capital              CapitalRequirements
	ClaimProcessing      ClaimProcessing
	KYC                  KYCThresholds
	SandboxEligible      bool
}

var registry = map[Code]Jurisdiction{
	CodeEU: {
		Code:                 CodeEU,
		Name:                 "European Union",
		IsEU:                 true,
		RegulatoryFrameworks: []string{"Solvency II", "GDPR", "DLT Pilot Regime"},
		Capital: CapitalRequirements{
			BaseReserveRatio:      0.25,
			MinCapitalRequirement: 50000,
			RiskBasedCapital:      true,
		},
		ClaimProcessing: ClaimProcessing{
			MaxAutomaticPayout:       200,
			MandatoryReviewThreshold: 500,
			AppealPeriodDays:         30,
		},
		KYC: KYCThresholds{
			Basic:    100,
			Enhanced: 1000,
			Full:     math.Inf(1),
		},
		SandboxEligible: true,
	},
	CodeUS: {
		Code:                 CodeUS,
		Name:                 "United States",
		RegulatoryFrameworks: []string{"NAIC RBC", "State Insurance Laws", "Wyoming DAO LLC"},
		Capital: CapitalRequirements{
			BaseReserveRatio:      0.20,
			MinCapitalRequirement: 75000,
			RiskBasedCapital:      true,
		},
		ClaimProcessing: ClaimProcessing{
			MaxAutomaticPayout:       250,
			MandatoryReviewThreshold: 750,
			AppealPeriodDays:         45,
		},
		KYC: KYCThresholds{
			Basic:    250,
			Enhanced: 2000,
			Full:     math.Inf(1),
		},
		SandboxEligible: true,
	},
	CodeUK: {
		Code:                 CodeUK,
		Name:                 "United Kingdom",
		RegulatoryFrameworks: []string{"UK Solvency II", "FCA Regulations", "UK GDPR"},
		Capital: CapitalRequirements{
			BaseReserveRatio:      0.23,
			MinCapitalRequirement: 60000,
			RiskBasedCapital:      true,
		},
		ClaimProcessing: ClaimProcessing{
			MaxAutomaticPayout:       225,
			MandatoryReviewThreshold: 600,
			AppealPeriodDays:         30,
		},
		KYC: KYCThresholds{
			Basic:    150,
			Enhanced: 1500,
			Full:     math.Inf(1),
		},
		SandboxEligible: true,
	},
	CodeSG: {
		Code:                 CodeSG,
		Name:                 "Singapore",
		RegulatoryFrameworks: []string{"MAS Regulations", "Payment Services Act", "Sandbox Express"},
		Capital: CapitalRequirements{
			BaseReserveRatio:      0.18,
			MinCapitalRequirement: 40000,
			RiskBasedCapital:      true,
		},
		ClaimProcessing: ClaimProcessing{
			MaxAutomaticPayout:       300,
			MandatoryReviewThreshold: 800,
			AppealPeriodDays:         30,
		},
		KYC: KYCThresholds{
			Basic:    200,
			Enhanced: 1800,
			Full:     math.Inf(1),
		},
		SandboxEligible: true,
	},
	CodeGlobal: {
		Code:                 CodeGlobal,
		Name:                 "Global Default",
		RegulatoryFrameworks: []string{"IAIS Standards", "FATF Recommendations"},
		Capital: CapitalRequirements{
			BaseReserveRatio:      0.30,
			MinCapitalRequirement: 100000,
			RiskBasedCapital:      true,
		},
		ClaimProcessing: ClaimProcessing{
			MaxAutomaticPayout:       100,
			MandatoryReviewThreshold: 500,
			AppealPeriodDays:         45,
		},
		KYC: KYCThresholds{
			Basic:    100,
			Enhanced: 1000,
			Full:     math.Inf(1),
		},
		SandboxEligible: false,
	},
}

// Lookup returns the jurisdiction record for a code. Unknown codes are
// rejected at the boundary rather than defaulting to a permissive record.
func Lookup(code Code) (Jurisdiction, error) {
	j, ok := registry[code]
	if !ok {
		return Jurisdiction{}, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported jurisdiction %q", code)
	}
	return j, nil
}

// Supported reports whether a code is a known jurisdiction.
func Supported(code Code) bool {
	_, ok := registry[code]
	return ok
}

// All returns every registered jurisdiction. The slice is a copy; callers may
// not mutate the registry through it.
func All() []Jurisdiction {
	out := make([]Jurisdiction, 0, len(registry))
	for _, j := range registry {
		out = append(out, j)
	}
	return out
}
