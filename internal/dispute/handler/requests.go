package handler

import (
	"strings"

	"peershield/internal/arbitration"
	"peershield/internal/dispute"
	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	pstrings "peershield/pkg/platform/strings"
)

// CreateRequest is the wire form of a dispute creation request.
type CreateRequest struct {
	PolicyID           string   `json:"policy_id"`
	ClaimID            string   `json:"claim_id"`
	Respondent         string   `json:"respondent"`
	Amount             float64  `json:"amount"`
	Currency           string   `json:"currency"`
	PolicyJurisdiction string   `json:"policy_jurisdiction,omitempty"`
	Jurisdictions      []string `json:"jurisdictions"`

	policyID   id.PolicyID
	claimID    id.ClaimID
	respondent id.PartyID
}

func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	var err error
	if r.policyID, err = id.ParsePolicyID(r.PolicyID); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "policy_id must be a valid UUID")
	}
	if r.claimID, err = id.ParseClaimID(r.ClaimID); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "claim_id must be a valid UUID")
	}
	if r.respondent, err = id.ParsePartyID(r.Respondent); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "respondent must be a valid UUID")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	r.Currency = strings.TrimSpace(r.Currency)
	if r.Currency == "" {
		return dErrors.New(dErrors.CodeBadRequest, "currency is required")
	}
	r.Jurisdictions = pstrings.DedupeAndTrim(r.Jurisdictions)
	if len(r.Jurisdictions) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "at least one jurisdiction is required")
	}
	return nil
}

// ToParams converts the validated request into service parameters with the
// authenticated party as initiator.
func (r *CreateRequest) ToParams(initiator id.PartyID) dispute.CreateParams {
	codes := make([]jurisdiction.Code, 0, len(r.Jurisdictions))
	for _, raw := range r.Jurisdictions {
		codes = append(codes, jurisdiction.Code(strings.ToUpper(strings.TrimSpace(raw))))
	}
	return dispute.CreateParams{
		PolicyID:           r.policyID,
		ClaimID:            r.claimID,
		Initiator:          initiator,
		Respondent:         r.respondent,
		Amount:             r.Amount,
		Currency:           r.Currency,
		PolicyJurisdiction: jurisdiction.Code(strings.ToUpper(strings.TrimSpace(r.PolicyJurisdiction))),
		Jurisdictions:      codes,
	}
}

// EvidenceRequest carries an evidence payload, base64-encoded on the wire.
type EvidenceRequest struct {
	Content []byte `json:"content"`
}

func (r *EvidenceRequest) Validate() error {
	if r == nil || len(r.Content) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "evidence content is required")
	}
	return nil
}

// EvidenceResponse returns a stored evidence payload.
type EvidenceResponse struct {
	Content []byte `json:"content"`
}

// DecisionRequest carries an arbitrator vote or a judicial ruling.
type DecisionRequest struct {
	Decision string  `json:"decision"`
	Amount   float64 `json:"amount"`
	Reason   string  `json:"reason"`
}

func (r *DecisionRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Decision = strings.ToLower(strings.TrimSpace(r.Decision))
	if !arbitration.Decision(r.Decision).Valid() {
		return dErrors.New(dErrors.CodeBadRequest, "decision must be one of approved, denied, partial")
	}
	if r.Amount < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount cannot be negative")
	}
	return nil
}

// AppealRequest carries the appellant's stated grounds. The body is optional;
// an empty reason is accepted.
type AppealRequest struct {
	Reason string `json:"reason"`
}
