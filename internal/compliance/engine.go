// Package compliance implements the authorize-before-act gate run ahead of
// policy, claim, and dispute actions. Evaluation is side-effect free: the gate
// reads reference data and party profiles, and returns a verdict. Denials are
// business outcomes carried in the result, not errors.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"peershield/internal/jurisdiction"
	"peershield/internal/platform/metrics"
	"peershield/internal/registry"
	"peershield/internal/resolution"
	"peershield/internal/sandbox"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// SandboxGate is the slice of the sandbox registrar the gate consults.
type SandboxGate interface {
	ActiveRegistration(ctx context.Context, code jurisdiction.Code) (*sandbox.Registration, error)
	CheckAction(reg *sandbox.Registration, amount float64, code jurisdiction.Code) sandbox.CheckResult
	DisclosureText(reg *sandbox.Registration) string
}

// Request is one proposed action to authorize.
type Request struct {
	Action  Action
	PartyID id.PartyID
	Amount  float64

	// PolicyJurisdiction is set for dispute creation; a mismatch with the
	// party's own jurisdiction makes the dispute cross-border.
	PolicyJurisdiction jurisdiction.Code
}

// Engine evaluates proposed actions against the jurisdiction registry, party
// KYC tiers, sanctions screening, and any active regulatory sandbox.
type Engine struct {
	profiles  ProfileDirectory
	sandboxes SandboxGate
	sanctions registry.SanctionsClient
	fees      resolution.PoolParams
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithSandboxGate(gate SandboxGate) Option {
	return func(e *Engine) {
		e.sandboxes = gate
	}
}

func WithSanctions(client registry.SanctionsClient) Option {
	return func(e *Engine) {
		e.sanctions = client
	}
}

func WithPoolParams(fees resolution.PoolParams) Option {
	return func(e *Engine) {
		e.fees = fees
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func NewEngine(profiles ProfileDirectory, opts ...Option) (*Engine, error) {
	if profiles == nil {
		return nil, fmt.Errorf("profile directory is required")
	}

	e := &Engine{
		profiles: profiles,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Authorize evaluates one proposed action. The error return is reserved for
// malformed input and infrastructure failures; a compliance denial comes back
// as an unapproved CheckResult.
func (e *Engine) Authorize(ctx context.Context, req Request) (CheckResult, error) {
	if !req.Action.Valid() {
		return CheckResult{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown action %q", req.Action)
	}
	if req.PartyID.IsNil() {
		return CheckResult{}, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	if req.Amount < 0 {
		return CheckResult{}, dErrors.New(dErrors.CodeInvalidInput, "amount must not be negative")
	}

	result, err := e.evaluate(ctx, req)
	if err != nil {
		return CheckResult{}, err
	}

	if e.metrics != nil {
		e.metrics.RecordComplianceCheck(string(req.Action), result.Approved)
	}
	if !result.Approved {
		e.logger.InfoContext(ctx, "compliance gate denied action",
			"action", req.Action,
			"party_id", req.PartyID,
			"reason", result.Reason,
		)
	}
	return result, nil
}

func (e *Engine) evaluate(ctx context.Context, req Request) (CheckResult, error) {
	profile, ok, err := e.profiles.Profile(ctx, req.PartyID)
	if err != nil {
		return CheckResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load party profile")
	}
	if !ok || profile.Jurisdiction.CountryCode == "" {
		return jurisdictionNotSet(), nil
	}

	if e.sanctions != nil {
		record, err := e.sanctions.Check(ctx, req.PartyID)
		if err != nil {
			return CheckResult{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "sanctions screening failed")
		}
		if record.Listed {
			return CheckResult{
				Approved: false,
				Reason:   fmt.Sprintf("Party is listed on a sanctions registry (%s)", record.Source),
			}, nil
		}
	}

	code := profile.Jurisdiction.Code()
	record, err := jurisdiction.Lookup(code)
	if err != nil {
		return CheckResult{}, err
	}

	switch req.Action {
	case ActionCreatePolicy:
		return e.checkPolicyCreation(ctx, profile, record, req.Amount)
	case ActionSubmitClaim:
		return e.checkClaimSubmission(ctx, record, req.Amount)
	default:
		return e.checkDisputeCreation(ctx, record, req)
	}
}

// jurisdictionNotSet is the fail-closed verdict: the gate never guesses where
// a party is.
func jurisdictionNotSet() CheckResult {
	return CheckResult{
		Approved:                       false,
		Reason:                         "User jurisdiction not set",
		RequiresAdditionalVerification: true,
		AdditionalRequirements:         []string{"Set user jurisdiction"},
	}
}

func (e *Engine) checkPolicyCreation(ctx context.Context, profile Profile, record jurisdiction.Jurisdiction, amount float64) (CheckResult, error) {
	required := requiredTier(record.KYC, amount)
	if profile.KYC.Rank() < required.Rank() {
		return CheckResult{
			Approved:                       false,
			Reason:                         fmt.Sprintf("KYC level %s required for this coverage amount", required),
			RequiresAdditionalVerification: true,
			AdditionalRequirements:         []string{fmt.Sprintf("Complete %s KYC verification", profile.KYC.Next())},
		}, nil
	}

	reg, err := e.activeSandbox(ctx, record.Code)
	if err != nil {
		return CheckResult{}, err
	}
	if reg != nil {
		check := e.sandboxes.CheckAction(reg, amount, record.Code)
		if !check.Allowed {
			return CheckResult{
				Approved:    false,
				Reason:      check.Reason,
				Disclosures: []string{e.sandboxes.DisclosureText(reg)},
			}, nil
		}
	}

	return CheckResult{
		Approved:    true,
		Disclosures: e.requiredDisclosures(reg, record),
	}, nil
}

func (e *Engine) checkClaimSubmission(ctx context.Context, record jurisdiction.Jurisdiction, amount float64) (CheckResult, error) {
	processing := record.ClaimProcessing
	if amount > processing.MaxAutomaticPayout {
		requirements := []string{"Claim requires manual review"}
		if amount > processing.MandatoryReviewThreshold {
			requirements = append(requirements, "Enhanced documentation required", "Adjuster review required")
		}

		// Submittable, but flagged for review rather than automatic payout.
		return CheckResult{
			Approved:                       true,
			RequiresAdditionalVerification: true,
			AdditionalRequirements:         requirements,
			Disclosures: []string{
				fmt.Sprintf("Claims above %g USDC require manual review.", processing.MaxAutomaticPayout),
				"Review process may take up to 5 business days.",
			},
		}, nil
	}

	reg, err := e.activeSandbox(ctx, record.Code)
	if err != nil {
		return CheckResult{}, err
	}
	return CheckResult{
		Approved:    true,
		Disclosures: e.requiredDisclosures(reg, record),
	}, nil
}

func (e *Engine) checkDisputeCreation(ctx context.Context, record jurisdiction.Jurisdiction, req Request) (CheckResult, error) {
	crossBorder := req.PolicyJurisdiction != "" && req.PolicyJurisdiction != record.Code

	jurisdictions := []jurisdiction.Code{record.Code}
	if crossBorder {
		jurisdictions = append(jurisdictions, req.PolicyJurisdiction)
	}

	mechanism := resolution.Select(req.Amount, crossBorder)
	params, err := resolution.ParamsFor(mechanism)
	if err != nil {
		return CheckResult{}, err
	}

	advisories := []string{}
	if e.fees != nil {
		fee, err := resolution.CalculateFee(req.Amount, mechanism, jurisdictions, e.fees)
		if err != nil {
			return CheckResult{}, err
		}
		advisories = append(advisories, fmt.Sprintf("Dispute fee: %g USDC", fee))
	}
	advisories = append(advisories,
		fmt.Sprintf("Response window: %d days", params.ResponseWindowDays),
		fmt.Sprintf("Expected resolution time: %d days", params.ResolutionTargetDays),
	)

	disclosures := []string{
		fmt.Sprintf("This dispute will be handled through %s.", params.Name),
	}
	if crossBorder {
		disclosures = append(disclosures, "This is a cross-border dispute and may be subject to additional requirements.")
	}

	return CheckResult{
		Approved:               true,
		AdditionalRequirements: advisories,
		Disclosures:            disclosures,
	}, nil
}

func (e *Engine) activeSandbox(ctx context.Context, code jurisdiction.Code) (*sandbox.Registration, error) {
	if e.sandboxes == nil {
		return nil, nil
	}
	reg, err := e.sandboxes.ActiveRegistration(ctx, code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check sandbox registration")
	}
	return reg, nil
}

// requiredTier derives the verification level a jurisdiction demands for a
// monetary amount.
func requiredTier(thresholds jurisdiction.KYCThresholds, amount float64) KYCTier {
	switch {
	case amount <= thresholds.Basic:
		return TierBasic
	case amount <= thresholds.Enhanced:
		return TierEnhanced
	default:
		return TierFull
	}
}

// requiredDisclosures assembles the standing disclosures attached to every
// approval: the active sandbox's text plus the jurisdiction's frameworks.
func (e *Engine) requiredDisclosures(reg *sandbox.Registration, record jurisdiction.Jurisdiction) []string {
	var disclosures []string
	if reg != nil {
		disclosures = append(disclosures, e.sandboxes.DisclosureText(reg))
	}
	if len(record.RegulatoryFrameworks) > 0 {
		disclosures = append(disclosures, fmt.Sprintf(
			"PeerShield operates under the regulatory frameworks of %s.",
			strings.Join(record.RegulatoryFrameworks, ", "),
		))
	}
	return disclosures
}
