// Package sandbox tracks the regulatory sandbox programs the platform
// operates under: enrollment, coverage limitations, disclosure text, and
// regulator reporting cadence.
package sandbox

import (
	"time"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// ProgramID identifies a known regulatory sandbox program.
type ProgramID string

const (
	EUDLTPilot             ProgramID = "EU_DLT_PILOT"
	WyomingDAOLLC          ProgramID = "WYOMING_DAO_LLC"
	USInsurtechSandbox     ProgramID = "US_INSURTECH_SANDBOX"
	SingaporeSandboxExpr   ProgramID = "SINGAPORE_SANDBOX_EXPRESS"
	UKFCASandbox           ProgramID = "UK_FCA_SANDBOX"
	GlobalBlockchainSandbx ProgramID = "GLOBAL_BLOCKCHAIN_INSURANCE"
)

// Program is the static configuration of a sandbox program. Immutable
// reference data, like the jurisdiction registry.
type Program struct {
	ID                    ProgramID
	Name                  string
	EligibleJurisdictions []jurisdiction.Code
	MaxCoverageAmount     float64
	MaxUserCount          int
	ReportingFrequency    Frequency
	Expiry                time.Time
	RegulatoryPassport    bool
	CrossBorderEnabled    bool
}

var programs = map[ProgramID]Program{
	EUDLTPilot: {
		ID:                    EUDLTPilot,
		Name:                  "EU DLT Pilot Regime",
		EligibleJurisdictions: []jurisdiction.Code{jurisdiction.CodeEU},
		MaxCoverageAmount:     10000,
		MaxUserCount:          5000,
		ReportingFrequency:    Quarterly,
		Expiry:                time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		RegulatoryPassport:    true,
		CrossBorderEnabled:    true,
	},
	WyomingDAOLLC: {
		ID:                    WyomingDAOLLC,
		Name:                  "Wyoming DAO LLC Framework",
		EligibleJurisdictions: []jurisdiction.Code{jurisdiction.CodeUS},
		MaxCoverageAmount:     15000,
		MaxUserCount:          7500,
		ReportingFrequency:    Quarterly,
		Expiry:                time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
	},
	USInsurtechSandbox: {
		ID:                    USInsurtechSandbox,
		Name:                  "US InsurTech Regulatory Sandbox",
		EligibleJurisdictions: []jurisdiction.Code{jurisdiction.CodeUS},
		MaxCoverageAmount:     20000,
		MaxUserCount:          10000,
		ReportingFrequency:    Monthly,
		Expiry:                time.Date(2027, 12, 31, 0, 0, 0, 0, time.UTC),
		CrossBorderEnabled:    true,
	},
	SingaporeSandboxExpr: {
		ID:                    SingaporeSandboxExpr,
		Name:                  "MAS Sandbox Express",
		EligibleJurisdictions: []jurisdiction.Code{jurisdiction.CodeSG},
		MaxCoverageAmount:     12000,
		MaxUserCount:          6000,
		ReportingFrequency:    Monthly,
		Expiry:                time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		CrossBorderEnabled:    true,
	},
	UKFCASandbox: {
		ID:                    UKFCASandbox,
		Name:                  "UK FCA Regulatory Sandbox",
		EligibleJurisdictions: []jurisdiction.Code{jurisdiction.CodeUK},
		MaxCoverageAmount:     10000,
		MaxUserCount:          5000,
		ReportingFrequency:    Quarterly,
		Expiry:                time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
		CrossBorderEnabled:    true,
	},
	GlobalBlockchainSandbx: {
		ID:   GlobalBlockchainSandbx,
		Name: "Global Blockchain Insurance Sandbox",
		EligibleJurisdictions: []jurisdiction.Code{
			jurisdiction.CodeGlobal, jurisdiction.CodeEU, jurisdiction.CodeUS,
			jurisdiction.CodeUK, jurisdiction.CodeSG,
		},
		MaxCoverageAmount:  5000,
		MaxUserCount:       3000,
		ReportingFrequency: Quarterly,
		Expiry:             time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		RegulatoryPassport: true,
		CrossBorderEnabled: true,
	},
}

// ProgramFor returns the static configuration of a sandbox program.
func ProgramFor(programID ProgramID) (Program, error) {
	p, ok := programs[programID]
	if !ok {
		return Program{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown sandbox program %q", programID)
	}
	return p, nil
}

// Frequency is a reporting cadence.
type Frequency string

const (
	Weekly    Frequency = "weekly"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annually  Frequency = "annually"
)

// Next returns the due date one cadence interval after now.
func (f Frequency) Next(now time.Time) time.Time {
	switch f {
	case Weekly:
		return now.AddDate(0, 0, 7)
	case Monthly:
		return now.AddDate(0, 1, 0)
	case Quarterly:
		return now.AddDate(0, 3, 0)
	case Annually:
		return now.AddDate(1, 0, 0)
	default:
		return now.AddDate(0, 3, 0)
	}
}

// Limitations are the operating ceilings a sandbox imposes.
type Limitations struct {
	MaxCoverageAmount    float64             `json:"max_coverage_amount"`
	MaxParticipantCount  int                 `json:"max_participant_count"`
	RestrictedFeatures   []string            `json:"restricted_features"`
	AllowedJurisdictions []jurisdiction.Code `json:"allowed_jurisdictions"`
	RequiredDisclosures  []string            `json:"required_disclosures"`
}

// ReportingEntry is one scheduled regulator report.
type ReportingEntry struct {
	ReportType string    `json:"report_type"`
	Frequency  Frequency `json:"frequency"`
	NextDue    time.Time `json:"next_due"`
	Metrics    []string  `json:"metrics"`
}

// Status is the lifecycle state of a sandbox registration.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Registration is the platform's enrollment in one sandbox program.
//
// Invariants:
//   - EndDate is after StartDate
//   - revoked is terminal and never reversed
//   - status advances to expired when the validity window closes
type Registration struct {
	ID          id.RegistrationID `json:"id"`
	Program     ProgramID         `json:"program"`
	StartDate   time.Time         `json:"start_date"`
	EndDate     time.Time         `json:"end_date"`
	Status      Status            `json:"status"`
	Limitations Limitations       `json:"limitations"`
	Reporting   []ReportingEntry  `json:"reporting_schedule"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// IsActive reports whether the registration is usable at the given time.
func (r *Registration) IsActive(now time.Time) bool {
	return r.Status == StatusActive && !now.Before(r.StartDate) && !now.After(r.EndDate)
}

// CanRevoke checks the revocation transition guard.
// Use with ApplyRevocation in Execute callbacks.
func (r *Registration) CanRevoke() error {
	if r.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "registration is already revoked")
	}
	return nil
}

// ApplyRevocation marks the registration revoked. Terminal; never reversed.
func (r *Registration) ApplyRevocation(now time.Time) {
	r.Status = StatusRevoked
	r.UpdatedAt = now
}

// CanExpire checks the expiry transition guard.
func (r *Registration) CanExpire(now time.Time) error {
	if r.Status == StatusRevoked {
		return dErrors.New(dErrors.CodeInvariantViolation, "revoked registration cannot expire")
	}
	if r.Status == StatusExpired {
		return dErrors.New(dErrors.CodeInvariantViolation, "registration is already expired")
	}
	if now.Before(r.EndDate) {
		return dErrors.New(dErrors.CodeInvariantViolation, "registration validity window has not closed")
	}
	return nil
}

// ApplyExpiry marks the registration expired.
func (r *Registration) ApplyExpiry(now time.Time) {
	r.Status = StatusExpired
	r.UpdatedAt = now
}

// NeedsRenewal reports whether the registration expires within the renewal
// lead window (90 days).
func (r *Registration) NeedsRenewal(now time.Time) bool {
	return r.EndDate.Before(now.AddDate(0, 0, 90))
}

// NewRegistration builds an active registration for a program's enrollment
// approval, deriving limitations and the reporting schedule from the
// program's static configuration.
func NewRegistration(regID id.RegistrationID, programID ProgramID, start, end time.Time, now time.Time) (*Registration, error) {
	program, err := ProgramFor(programID)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "registration end date must be after start date")
	}

	return &Registration{
		ID:        regID,
		Program:   programID,
		StartDate: start,
		EndDate:   end,
		Status:    StatusActive,
		Limitations: Limitations{
			MaxCoverageAmount:    program.MaxCoverageAmount,
			MaxParticipantCount:  program.MaxUserCount,
			RestrictedFeatures:   restrictedFeaturesFor(program),
			AllowedJurisdictions: program.EligibleJurisdictions,
			RequiredDisclosures:  []string{"sandbox-participation", "coverage-limitations", "regulatory-status"},
		},
		Reporting: []ReportingEntry{
			{
				ReportType: "transaction-volume",
				Frequency:  program.ReportingFrequency,
				NextDue:    program.ReportingFrequency.Next(now),
				Metrics:    []string{"dispute-count", "disputed-amount", "claim-ratio"},
			},
			{
				ReportType: "user-demographics",
				Frequency:  program.ReportingFrequency,
				NextDue:    program.ReportingFrequency.Next(now),
				Metrics:    []string{"user-count", "jurisdiction-distribution"},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func restrictedFeaturesFor(program Program) []string {
	features := []string{"high-value-policies"}
	if !program.CrossBorderEnabled {
		features = append(features, "cross-border-claims")
	}
	return features
}
