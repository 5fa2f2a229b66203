package dispute

import (
	"time"

	"peershield/internal/arbitration"
	"peershield/internal/jurisdiction"
	"peershield/internal/resolution"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// Status is the dispute lifecycle state.
type Status string

const (
	StatusInitiated          Status = "INITIATED"
	StatusEvidenceCollection Status = "EVIDENCE_COLLECTION"
	StatusArbitration        Status = "ARBITRATION"
	StatusJudicialReview     Status = "JUDICIAL_REVIEW"
	StatusResolved           Status = "RESOLVED"
	StatusCancelled          Status = "CANCELLED"
)

// Terminal reports whether no further transition is possible from s. RESOLVED
// is terminal except through a valid appeal, which is guarded separately.
func (s Status) Terminal() bool {
	return s == StatusCancelled
}

// Enforcement is how a resolution's award is carried out.
type Enforcement string

const (
	EnforcementDirectSettlement Enforcement = "direct_settlement"
	EnforcementEscrowRelease    Enforcement = "escrow_release"
	EnforcementExternalLegal    Enforcement = "external_legal_process"
)

// EnforcementFor maps a resolution mechanism to its enforcement channel.
func EnforcementFor(m resolution.Mechanism) Enforcement {
	switch m {
	case resolution.OnChainArbitration:
		return EnforcementDirectSettlement
	case resolution.JudicialReview:
		return EnforcementExternalLegal
	default:
		return EnforcementEscrowRelease
	}
}

// appealWindow is how long after resolution an appeal stays open.
const appealWindow = 30 * 24 * time.Hour

// EvidenceRef records one submitted evidence item by content hash. The engine
// never holds the raw payload.
type EvidenceRef struct {
	Hash        string     `json:"hash"`
	SubmittedBy id.PartyID `json:"submitted_by"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// Resolution is the outcome of one resolution cycle. Created exactly once when
// the dispute transitions to RESOLVED and never mutated; a successful appeal
// moves it into the dispute's history and opens a new cycle.
type Resolution struct {
	Decision       arbitration.Decision `json:"decision"`
	AwardedAmount  *float64             `json:"awarded_amount,omitempty"`
	Reason         string               `json:"reason"`
	Signatures     []id.ArbitratorID    `json:"signatures"`
	Enforcement    Enforcement          `json:"enforcement"`
	Appealable     bool                 `json:"appealable"`
	ResolvedAt     time.Time            `json:"resolved_at"`
	AppealDeadline *time.Time           `json:"appeal_deadline,omitempty"`
}

// Dispute is a formal disagreement over a claim outcome, owned exclusively by
// the lifecycle engine. Only the engine writes Status or Resolution.
type Dispute struct {
	ID            id.DisputeID        `json:"id"`
	PolicyID      id.PolicyID         `json:"policy_id"`
	ClaimID       id.ClaimID          `json:"claim_id"`
	Initiator     id.PartyID          `json:"initiator"`
	Respondent    id.PartyID          `json:"respondent"`
	Amount        float64             `json:"amount"`
	Currency      string              `json:"currency"`
	Status        Status              `json:"status"`
	Mechanism     resolution.Mechanism `json:"mechanism"`
	Evidence      []EvidenceRef       `json:"evidence"`
	Arbitrators   []id.ArbitratorID   `json:"arbitrators"`
	CrossBorder   bool                `json:"cross_border"`
	Jurisdictions []jurisdiction.Code `json:"jurisdictions"`
	Resolution    *Resolution         `json:"resolution,omitempty"`

	// History holds the resolutions of prior cycles overturned on appeal,
	// oldest first.
	History []Resolution `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version increments on every committed transition; stores use it for
	// optimistic conflict detection.
	Version int `json:"-"`
}

// NewDispute opens a dispute over a claim. The mechanism comes from the
// selector based on amount and jurisdiction spread; the dispute enters
// evidence collection immediately.
func NewDispute(disputeID id.DisputeID, policyID id.PolicyID, claimID id.ClaimID, initiator, respondent id.PartyID, amount float64, currency string, jurisdictions []jurisdiction.Code, now time.Time) (*Dispute, error) {
	if policyID.IsNil() || claimID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "dispute requires a policy and claim reference")
	}
	if initiator.IsNil() || respondent.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "dispute requires an initiator and a respondent")
	}
	if initiator == respondent {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "initiator and respondent must differ")
	}
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "disputed amount must be positive")
	}
	if currency == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "currency is required")
	}
	if len(jurisdictions) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one jurisdiction is required")
	}

	codes := dedupeJurisdictions(jurisdictions)
	crossBorder := len(codes) > 1

	return &Dispute{
		ID:            disputeID,
		PolicyID:      policyID,
		ClaimID:       claimID,
		Initiator:     initiator,
		Respondent:    respondent,
		Amount:        amount,
		Currency:      currency,
		Status:        StatusEvidenceCollection,
		Mechanism:     resolution.Select(amount, crossBorder),
		CrossBorder:   crossBorder,
		Jurisdictions: codes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsParty reports whether partyID is the initiator or respondent.
func (d *Dispute) IsParty(partyID id.PartyID) bool {
	return partyID == d.Initiator || partyID == d.Respondent
}

// CanAddEvidence checks the evidence-submission guard.
func (d *Dispute) CanAddEvidence(submitter id.PartyID) error {
	if !d.IsParty(submitter) {
		return dErrors.New(dErrors.CodeUnauthorized, "only a dispute party may submit evidence")
	}
	if d.Status != StatusEvidenceCollection {
		return dErrors.Newf(dErrors.CodeStateConflict, "evidence cannot be added while dispute is %s", d.Status)
	}
	return nil
}

// ApplyEvidence records an evidence reference.
func (d *Dispute) ApplyEvidence(ref EvidenceRef, now time.Time) {
	d.Evidence = append(d.Evidence, ref)
	d.UpdatedAt = now
}

// CanStartArbitration checks the arbitration-entry guard. Quorum assembly is
// checked by the service, not here.
func (d *Dispute) CanStartArbitration() error {
	if d.Status != StatusEvidenceCollection {
		return dErrors.Newf(dErrors.CodeStateConflict, "arbitration cannot start while dispute is %s", d.Status)
	}
	if len(d.Evidence) == 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "arbitration requires at least one evidence item")
	}
	return nil
}

// ApplyArbitrationStart assigns the quorum and enters arbitration, or the
// judicial-review branch when that is the assigned mechanism.
func (d *Dispute) ApplyArbitrationStart(arbitrators []id.ArbitratorID, now time.Time) {
	d.Arbitrators = arbitrators
	if d.Mechanism == resolution.JudicialReview {
		d.Status = StatusJudicialReview
	} else {
		d.Status = StatusArbitration
	}
	d.UpdatedAt = now
}

// CanResolve checks the resolution guard.
func (d *Dispute) CanResolve() error {
	if d.Status != StatusArbitration && d.Status != StatusJudicialReview {
		return dErrors.Newf(dErrors.CodeStateConflict, "dispute cannot be resolved while %s", d.Status)
	}
	return nil
}

// ApplyResolution records the outcome and enters RESOLVED. The appeal deadline
// is strictly after the resolution time.
func (d *Dispute) ApplyResolution(res Resolution, now time.Time) {
	res.ResolvedAt = now
	if res.Appealable {
		deadline := now.Add(appealWindow)
		res.AppealDeadline = &deadline
	}
	d.Resolution = &res
	d.Status = StatusResolved
	d.UpdatedAt = now
}

// CanAppeal checks every appeal guard: status, standing, appealability,
// deadline, and remaining escalation headroom.
func (d *Dispute) CanAppeal(appellant id.PartyID, now time.Time) error {
	if d.Status != StatusResolved {
		return dErrors.Newf(dErrors.CodeStateConflict, "only a resolved dispute can be appealed, dispute is %s", d.Status)
	}
	if !d.IsParty(appellant) {
		return dErrors.New(dErrors.CodeUnauthorized, "only a dispute party may appeal")
	}
	if d.Resolution == nil || !d.Resolution.Appealable {
		return dErrors.New(dErrors.CodeInvariantViolation, "resolution is not appealable")
	}
	if d.Resolution.AppealDeadline != nil && now.After(*d.Resolution.AppealDeadline) {
		return dErrors.New(dErrors.CodeDeadlineExceeded, "appeal deadline has passed")
	}
	if _, err := resolution.Escalate(d.Mechanism); err != nil {
		return err
	}
	return nil
}

// ApplyAppeal escalates one tier, archives the overturned resolution, clears
// the arbitrator assignment, and re-enters evidence collection.
func (d *Dispute) ApplyAppeal(now time.Time) {
	next, _ := resolution.Escalate(d.Mechanism)
	d.Mechanism = next
	d.History = append(d.History, *d.Resolution)
	d.Resolution = nil
	d.Arbitrators = nil
	d.Status = StatusEvidenceCollection
	d.UpdatedAt = now
}

// CanCancel checks the cooperative-withdrawal guard.
func (d *Dispute) CanCancel(requester id.PartyID) error {
	if !d.IsParty(requester) {
		return dErrors.New(dErrors.CodeUnauthorized, "only a dispute party may cancel")
	}
	switch d.Status {
	case StatusInitiated, StatusEvidenceCollection, StatusArbitration:
		return nil
	}
	return dErrors.Newf(dErrors.CodeStateConflict, "dispute cannot be cancelled while %s", d.Status)
}

// ApplyCancellation enters the terminal CANCELLED state.
func (d *Dispute) ApplyCancellation(now time.Time) {
	d.Status = StatusCancelled
	d.UpdatedAt = now
}

func dedupeJurisdictions(codes []jurisdiction.Code) []jurisdiction.Code {
	seen := make(map[jurisdiction.Code]struct{}, len(codes))
	out := make([]jurisdiction.Code, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
