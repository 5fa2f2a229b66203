package dispute

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"peershield/internal/arbitration"
	"peershield/internal/audit"
	"peershield/internal/compliance"
	"peershield/internal/evidence"
	"peershield/internal/jurisdiction"
	"peershield/internal/ledger"
	"peershield/internal/platform/metrics"
	"peershield/internal/resolution"
	"peershield/internal/sandbox"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/platform/sentinel"
	"peershield/pkg/requestcontext"
)

// Authorizer runs the compliance check gating dispute creation.
type Authorizer interface {
	Authorize(ctx context.Context, req compliance.Request) (compliance.CheckResult, error)
}

// AuditPublisher records lifecycle events for the regulatory trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates the dispute lifecycle: creation, evidence, arbitration,
// resolution, appeal, and cancellation. It owns every state transition; the
// aggregate's guards decide legality, the store serializes the commit.
type Service struct {
	disputes   Store
	evidence   evidence.Store
	arbiters   *arbitration.Manager
	authorizer Authorizer
	ledger     ledger.Gateway
	audit      AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuthorizer(authorizer Authorizer) Option {
	return func(s *Service) {
		s.authorizer = authorizer
	}
}

func WithLedger(gateway ledger.Gateway) Option {
	return func(s *Service) {
		s.ledger = gateway
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(disputes Store, evidenceStore evidence.Store, arbiters *arbitration.Manager, opts ...Option) (*Service, error) {
	if disputes == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "dispute store is required")
	}
	if evidenceStore == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "evidence store is required")
	}
	if arbiters == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "arbitration manager is required")
	}
	s := &Service{
		disputes: disputes,
		evidence: evidenceStore,
		arbiters: arbiters,
		logger:   slog.Default(),
		tracer:   otel.Tracer("peershield.dispute"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetAuthorizer installs the compliance check after construction. The
// compliance engine reports back through the sandbox registrar, which in turn
// needs this service as its reporter, so one of the two links is wired late.
func (s *Service) SetAuthorizer(authorizer Authorizer) {
	s.authorizer = authorizer
}

// CreateParams carries the inputs for opening a dispute.
type CreateParams struct {
	PolicyID           id.PolicyID
	ClaimID            id.ClaimID
	Initiator          id.PartyID
	Respondent         id.PartyID
	Amount             float64
	Currency           string
	PolicyJurisdiction jurisdiction.Code
	Jurisdictions      []jurisdiction.Code
}

// Create opens a dispute over a claim. When an authorizer is configured the
// initiator must pass the open_dispute compliance check first; a denial
// surfaces as CodeComplianceDenied carrying the check's reason.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Dispute, error) {
	ctx, span := s.tracer.Start(ctx, "dispute.create")
	defer span.End()

	if s.authorizer != nil {
		result, err := s.authorizer.Authorize(ctx, compliance.Request{
			Action:             compliance.ActionOpenDispute,
			PartyID:            params.Initiator,
			Amount:             params.Amount,
			PolicyJurisdiction: params.PolicyJurisdiction,
		})
		if err != nil {
			return nil, err
		}
		if !result.Approved {
			s.emit(ctx, audit.Event{
				Actor:    params.Initiator,
				Action:   audit.EventComplianceDenied,
				Decision: "denied",
				Reason:   result.Reason,
			})
			return nil, dErrors.New(dErrors.CodeComplianceDenied, result.Reason)
		}
	}

	now := requestcontext.Now(ctx)
	d, err := NewDispute(
		id.DisputeID(uuid.New()),
		params.PolicyID, params.ClaimID,
		params.Initiator, params.Respondent,
		params.Amount, params.Currency,
		params.Jurisdictions, now,
	)
	if err != nil {
		return nil, err
	}

	if err := s.disputes.Save(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save dispute")
	}

	span.SetAttributes(
		attribute.String("dispute.id", d.ID.String()),
		attribute.String("dispute.mechanism", string(d.Mechanism)),
	)
	s.logger.InfoContext(ctx, "dispute created",
		"dispute_id", d.ID,
		"mechanism", d.Mechanism,
		"cross_border", d.CrossBorder,
	)
	if s.metrics != nil {
		s.metrics.DisputesCreated.Inc()
	}
	s.emit(ctx, audit.Event{
		DisputeID: d.ID,
		Actor:     params.Initiator,
		Action:    audit.EventDisputeCreated,
	})
	return d, nil
}

// AddEvidence stores the payload content-addressed and records its reference
// on the dispute. The blob is written before the transition commits; a
// rejected transition leaves an unreferenced blob, which is harmless because
// storage is content-addressed.
func (s *Service) AddEvidence(ctx context.Context, disputeID id.DisputeID, submitter id.PartyID, payload []byte) (*Dispute, error) {
	ctx, span := s.tracer.Start(ctx, "dispute.add_evidence")
	defer span.End()

	current, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := current.CanAddEvidence(submitter); err != nil {
		return nil, err
	}

	hash, err := s.evidence.Store(ctx, submitter, payload)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	ref := EvidenceRef{Hash: hash, SubmittedBy: submitter, SubmittedAt: now}
	d, err := s.execute(ctx, disputeID,
		func(d *Dispute) error { return d.CanAddEvidence(submitter) },
		func(d *Dispute) { d.ApplyEvidence(ref, now) },
	)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		DisputeID: disputeID,
		Actor:     submitter,
		Action:    audit.EventEvidenceSubmitted,
		Reason:    hash,
	})
	return d, nil
}

// StartArbitration moves the dispute out of evidence collection. For on-chain
// and hybrid mechanisms a quorum is drawn from the arbitration pool and a
// voting round opens; a pool that cannot seat the quorum leaves the dispute in
// EVIDENCE_COLLECTION and surfaces CodePoolUnderCapacity. Judicial review
// needs no quorum and enters JUDICIAL_REVIEW directly.
func (s *Service) StartArbitration(ctx context.Context, disputeID id.DisputeID) (*Dispute, error) {
	ctx, span := s.tracer.Start(ctx, "dispute.start_arbitration")
	defer span.End()

	current, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if err := current.CanStartArbitration(); err != nil {
		return nil, err
	}

	var (
		assigned  []id.ArbitratorID
		threshold float64
	)
	if current.Mechanism != resolution.JudicialReview {
		assigned, threshold, err = s.arbiters.SelectArbitrators(ctx, current.CrossBorder, current.Jurisdictions)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodePoolUnderCapacity) {
				if s.metrics != nil {
					s.metrics.QuorumFailures.Inc()
				}
				s.logger.WarnContext(ctx, "quorum assembly failed",
					"dispute_id", disputeID,
					"error", err,
				)
			}
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	d, err := s.execute(ctx, disputeID,
		func(d *Dispute) error { return d.CanStartArbitration() },
		func(d *Dispute) { d.ApplyArbitrationStart(assigned, now) },
	)
	if err != nil {
		// The panel was seated but the transition lost; hand the caseload
		// credit back without touching any round a concurrent winner opened.
		s.arbiters.ReleaseArbitrators(ctx, assigned)
		return nil, err
	}

	// The round opens only after the transition commits, so a losing
	// concurrent caller never replaces or deletes the live round.
	if len(assigned) > 0 {
		if err := s.arbiters.Ballots().Open(disputeID, assigned, threshold); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "arbitration started",
		"dispute_id", disputeID,
		"status", d.Status,
		"arbitrators", len(assigned),
	)
	s.emit(ctx, audit.Event{
		DisputeID: disputeID,
		Action:    audit.EventArbitrationStarted,
	})
	return d, nil
}

// RecordDecision registers one arbitrator's vote. When the vote completes the
// consensus quorum the dispute resolves with the winning outcome; until then
// the dispute is returned unchanged in ARBITRATION.
func (s *Service) RecordDecision(ctx context.Context, disputeID id.DisputeID, vote arbitration.Vote) (*Dispute, error) {
	ctx, span := s.tracer.Start(ctx, "dispute.record_decision")
	defer span.End()

	if vote.CastAt.IsZero() {
		vote.CastAt = requestcontext.Now(ctx)
	}

	outcome, err := s.arbiters.Ballots().Record(disputeID, vote)
	if err != nil {
		return nil, err
	}

	s.emit(ctx, audit.Event{
		DisputeID: disputeID,
		Action:    audit.EventDecisionRecorded,
		Decision:  string(vote.Decision),
	})

	if outcome == nil {
		return s.GetDispute(ctx, disputeID)
	}
	return s.resolve(ctx, disputeID, Resolution{
		Decision:      outcome.Decision,
		AwardedAmount: awardFor(outcome.Decision, outcome.Amount),
		Reason:        outcome.Reason,
		Signatures:    outcome.Signatures,
	})
}

// RecordJudicialRuling resolves a dispute under judicial review with the
// court's verdict. There is no voting round; the ruling is final input.
func (s *Service) RecordJudicialRuling(ctx context.Context, disputeID id.DisputeID, decision arbitration.Decision, amount float64, reason string) (*Dispute, error) {
	ctx, span := s.tracer.Start(ctx, "dispute.record_judicial_ruling")
	defer span.End()

	if !decision.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown decision %q", decision)
	}

	current, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if current.Status != StatusJudicialReview {
		return nil, dErrors.Newf(dErrors.CodeStateConflict, "judicial ruling requires JUDICIAL_REVIEW, dispute is %s", current.Status)
	}

	return s.resolve(ctx, disputeID, Resolution{
		Decision:      decision,
		AwardedAmount: awardFor(decision, amount),
		Reason:        reason,
	})
}

// resolve commits the resolution and triggers enforcement. Appealability
// follows the escalation ladder: a dispute already at judicial review has
// nowhere left to go.
func (s *Service) resolve(ctx context.Context, disputeID id.DisputeID, res Resolution) (*Dispute, error) {
	now := requestcontext.Now(ctx)
	d, err := s.execute(ctx, disputeID,
		func(d *Dispute) error { return d.CanResolve() },
		func(d *Dispute) {
			res.Enforcement = EnforcementFor(d.Mechanism)
			_, escErr := resolution.Escalate(d.Mechanism)
			res.Appealable = escErr == nil
			d.ApplyResolution(res, now)
		},
	)
	if err != nil {
		return nil, err
	}
	s.arbiters.Ballots().Close(disputeID)

	s.logger.InfoContext(ctx, "dispute resolved",
		"dispute_id", disputeID,
		"decision", d.Resolution.Decision,
		"enforcement", d.Resolution.Enforcement,
	)
	if s.metrics != nil {
		s.metrics.DisputesResolved.WithLabelValues(string(d.Mechanism)).Inc()
	}
	s.emit(ctx, audit.Event{
		DisputeID: disputeID,
		Action:    audit.EventDisputeResolved,
		Decision:  string(d.Resolution.Decision),
		Reason:    d.Resolution.Reason,
	})

	s.requestSettlement(ctx, d)
	return d, nil
}

// requestSettlement forwards a direct-settlement award to the ledger without
// blocking resolution. Delivery failures are logged and counted; the
// resolution itself stands either way.
func (s *Service) requestSettlement(ctx context.Context, d *Dispute) {
	if s.ledger == nil || d.Resolution == nil {
		return
	}
	if d.Resolution.Enforcement != EnforcementDirectSettlement {
		return
	}
	if d.Resolution.AwardedAmount == nil || *d.Resolution.AwardedAmount <= 0 {
		return
	}

	req := ledger.SettlementRequest{
		DisputeID:   d.ID,
		Payee:       d.Initiator,
		Amount:      *d.Resolution.AwardedAmount,
		Currency:    d.Currency,
		RequestedAt: d.Resolution.ResolvedAt,
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		if err := s.ledger.RequestSettlement(detached, req); err != nil {
			if s.metrics != nil {
				s.metrics.SettlementRequests.WithLabelValues("error").Inc()
			}
			s.logger.ErrorContext(detached, "settlement request failed",
				"dispute_id", d.ID,
				"error", err,
			)
			return
		}
		if s.metrics != nil {
			s.metrics.SettlementRequests.WithLabelValues("ok").Inc()
		}
		s.emit(detached, audit.Event{
			DisputeID: d.ID,
			Action:    audit.EventSettlementRequested,
		})
	}()
}

// Appeal escalates a resolved dispute one mechanism tier and re-enters
// evidence collection with a fresh arbitrator slate.
func (s *Service) Appeal(ctx context.Context, disputeID id.DisputeID, appellant id.PartyID, reason string) (*Dispute, error) {
	ctx, span := s.tracer.Start(ctx, "dispute.appeal")
	defer span.End()

	now := requestcontext.Now(ctx)
	d, err := s.execute(ctx, disputeID,
		func(d *Dispute) error { return d.CanAppeal(appellant, now) },
		func(d *Dispute) { d.ApplyAppeal(now) },
	)
	if err != nil {
		return nil, err
	}
	s.arbiters.Ballots().Close(disputeID)

	s.logger.InfoContext(ctx, "dispute appealed",
		"dispute_id", disputeID,
		"mechanism", d.Mechanism,
		"reason", reason,
	)
	if s.metrics != nil {
		s.metrics.AppealsFiled.Inc()
	}
	s.emit(ctx, audit.Event{
		DisputeID: disputeID,
		Actor:     appellant,
		Action:    audit.EventDisputeAppealed,
		Reason:    reason,
	})
	return d, nil
}

// Cancel withdraws a dispute before resolution.
func (s *Service) Cancel(ctx context.Context, disputeID id.DisputeID, requester id.PartyID) (*Dispute, error) {
	ctx, span := s.tracer.Start(ctx, "dispute.cancel")
	defer span.End()

	now := requestcontext.Now(ctx)
	d, err := s.execute(ctx, disputeID,
		func(d *Dispute) error { return d.CanCancel(requester) },
		func(d *Dispute) { d.ApplyCancellation(now) },
	)
	if err != nil {
		return nil, err
	}
	s.arbiters.Ballots().Close(disputeID)

	s.emit(ctx, audit.Event{
		DisputeID: disputeID,
		Actor:     requester,
		Action:    audit.EventDisputeCancelled,
	})
	return d, nil
}

// GetDispute fetches a dispute by ID.
func (s *Service) GetDispute(ctx context.Context, disputeID id.DisputeID) (*Dispute, error) {
	if disputeID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "dispute id is required")
	}
	d, err := s.disputes.FindByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "dispute not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dispute")
	}
	return d, nil
}

// GetUserDisputes lists every dispute the party participates in.
func (s *Service) GetUserDisputes(ctx context.Context, partyID id.PartyID) ([]*Dispute, error) {
	if partyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	disputes, err := s.disputes.ListByParty(ctx, partyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list disputes")
	}
	return disputes, nil
}

// GetEvidence retrieves a stored evidence payload, restricted to dispute
// parties and assigned arbitrators.
func (s *Service) GetEvidence(ctx context.Context, disputeID id.DisputeID, requester id.PartyID, hash string) ([]byte, error) {
	d, err := s.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !d.IsParty(requester) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "only a dispute party may read evidence")
	}
	referenced := false
	for _, ref := range d.Evidence {
		if ref.Hash == hash {
			referenced = true
			break
		}
	}
	if !referenced {
		return nil, dErrors.New(dErrors.CodeNotFound, "evidence not found on dispute")
	}
	payload, err := s.evidence.Retrieve(ctx, hash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "evidence payload missing")
		}
		return nil, err
	}
	return payload, nil
}

// Snapshot aggregates the dispute ledger for sandbox regulatory reports.
func (s *Service) Snapshot(ctx context.Context) (sandbox.ReportSnapshot, error) {
	disputes, err := s.disputes.All(ctx)
	if err != nil {
		return sandbox.ReportSnapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate disputes")
	}

	snapshot := sandbox.ReportSnapshot{
		GeneratedAt:              requestcontext.Now(ctx),
		JurisdictionDistribution: make(map[jurisdiction.Code]int),
	}
	for _, d := range disputes {
		snapshot.DisputeCount++
		snapshot.TotalDisputedAmount += d.Amount
		if d.Status == StatusResolved {
			snapshot.ResolvedCount++
		}
		for _, code := range d.Jurisdictions {
			snapshot.JurisdictionDistribution[code]++
		}
	}
	return snapshot, nil
}

// execute runs a guarded transition through the store, retrying exactly once
// when a concurrent writer won the version race.
func (s *Service) execute(ctx context.Context, disputeID id.DisputeID, validate func(*Dispute) error, mutate func(*Dispute)) (*Dispute, error) {
	d, err := s.disputes.Execute(ctx, disputeID, validate, mutate)
	if errors.Is(err, sentinel.ErrConflict) {
		d, err = s.disputes.Execute(ctx, disputeID, validate, mutate)
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "dispute not found")
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeStateConflict, "dispute was modified concurrently")
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}

// awardFor returns the amount actually owed under a decision: denied verdicts
// award nothing.
func awardFor(decision arbitration.Decision, amount float64) *float64 {
	if decision == arbitration.DecisionDenied {
		return nil
	}
	return &amount
}
