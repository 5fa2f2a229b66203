package audit

import (
	"time"

	id "peershield/pkg/domain"
)

// Event is emitted from domain logic to capture key dispute and compliance
// actions. Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time         `json:"timestamp"`
	DisputeID      id.DisputeID      `json:"dispute_id,omitempty"`
	RegistrationID id.RegistrationID `json:"registration_id,omitempty"`
	Actor          id.PartyID        `json:"actor,omitempty"`
	Action         string            `json:"action"`
	Jurisdiction   string            `json:"jurisdiction,omitempty"`
	Decision       string            `json:"decision,omitempty"`
	Reason         string            `json:"reason,omitempty"`
}

const (
	// Dispute lifecycle events.
	EventDisputeCreated     = "dispute_created"
	EventEvidenceSubmitted  = "evidence_submitted"
	EventArbitrationStarted = "arbitration_started"
	EventDecisionRecorded   = "decision_recorded"
	EventDisputeResolved    = "dispute_resolved"
	EventDisputeAppealed    = "dispute_appealed"
	EventDisputeCancelled   = "dispute_cancelled"

	// Compliance events.
	EventComplianceDenied    = "compliance_denied"
	EventSettlementRequested = "settlement_requested"

	// Sandbox events.
	EventSandboxEnrolled = "sandbox_enrolled"
	EventSandboxRevoked  = "sandbox_revoked"
	EventReportSubmitted = "report_submitted"
)
