package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"peershield/internal/audit"
	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/requestcontext"
)

// Store persists sandbox registrations.
type Store interface {
	Save(ctx context.Context, reg *Registration) error
	FindByID(ctx context.Context, regID id.RegistrationID) (*Registration, error)
	List(ctx context.Context) ([]*Registration, error)
	Update(ctx context.Context, reg *Registration) error
}

// Reporter supplies the aggregate snapshot submitted on a sandbox's reporting
// cadence. Implemented by the dispute lifecycle engine.
type Reporter interface {
	Snapshot(ctx context.Context) (ReportSnapshot, error)
}

// AuditPublisher records enrollment lifecycle events for the regulatory trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ReportSnapshot is the structured record handed to a regulator. It is data,
// not a rendered document.
type ReportSnapshot struct {
	GeneratedAt              time.Time                 `json:"generated_at"`
	DisputeCount             int                       `json:"dispute_count"`
	TotalDisputedAmount      float64                   `json:"total_disputed_amount"`
	ResolvedCount            int                       `json:"resolved_count"`
	JurisdictionDistribution map[jurisdiction.Code]int `json:"jurisdiction_distribution"`
}

// CheckResult is the registrar's verdict on a proposed action.
type CheckResult struct {
	Allowed bool
	Reason  string
}

// Registrar manages sandbox enrollments and answers limitation checks for the
// compliance rule engine.
type Registrar struct {
	store    Store
	reporter Reporter
	audit    AuditPublisher
	logger   *slog.Logger
}

type Option func(*Registrar)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registrar) {
		r.logger = logger
	}
}

func WithReporter(reporter Reporter) Option {
	return func(r *Registrar) {
		r.reporter = reporter
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Registrar) {
		r.audit = publisher
	}
}

func New(store Store, opts ...Option) (*Registrar, error) {
	if store == nil {
		return nil, fmt.Errorf("sandbox store is required")
	}

	r := &Registrar{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Enroll records an approved enrollment in a sandbox program.
func (r *Registrar) Enroll(ctx context.Context, programID ProgramID, start, end time.Time) (*Registration, error) {
	now := requestcontext.Now(ctx)
	reg, err := NewRegistration(id.RegistrationID(uuid.New()), programID, start, end, now)
	if err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, reg); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save sandbox registration")
	}

	r.logger.InfoContext(ctx, "sandbox enrollment recorded",
		"registration_id", reg.ID,
		"program", reg.Program,
		"end_date", reg.EndDate,
	)
	r.emit(ctx, audit.Event{
		RegistrationID: reg.ID,
		Action:         audit.EventSandboxEnrolled,
		Reason:         string(reg.Program),
	})
	return reg, nil
}

// ActiveRegistration returns the active registration covering a jurisdiction,
// or nil when the platform is not operating under any sandbox there.
func (r *Registrar) ActiveRegistration(ctx context.Context, code jurisdiction.Code) (*Registration, error) {
	regs, err := r.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sandbox registrations")
	}

	now := requestcontext.Now(ctx)
	for _, reg := range regs {
		if !reg.IsActive(now) {
			continue
		}
		for _, allowed := range reg.Limitations.AllowedJurisdictions {
			if allowed == code {
				return reg, nil
			}
		}
	}
	return nil, nil
}

// CheckAction validates a requested amount and jurisdiction against a
// registration's limitations.
func (r *Registrar) CheckAction(reg *Registration, amount float64, code jurisdiction.Code) CheckResult {
	if amount > reg.Limitations.MaxCoverageAmount {
		return CheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Coverage amount exceeds sandbox limit of %g USDC", reg.Limitations.MaxCoverageAmount),
		}
	}

	allowed := false
	for _, j := range reg.Limitations.AllowedJurisdictions {
		if j == code || j == jurisdiction.CodeGlobal {
			allowed = true
			break
		}
	}
	if !allowed {
		return CheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Jurisdiction %s not allowed in this sandbox", code),
		}
	}

	return CheckResult{Allowed: true}
}

// DisclosureText renders the regulator-facing disclosure for a registration.
// The text is literal and surfaced verbatim to parties; callers must not
// summarize it.
func (r *Registrar) DisclosureText(reg *Registration) string {
	var b strings.Builder
	b.WriteString("IMPORTANT REGULATORY DISCLOSURE:\n\n")

	for _, d := range reg.Limitations.RequiredDisclosures {
		switch d {
		case "sandbox-participation", "dao-llc-status":
			b.WriteString("The platform is currently operating under a regulatory sandbox program. ")
			b.WriteString("This means it has limited regulatory approval to test its insurance products. ")
		case "coverage-limitations":
			fmt.Fprintf(&b, "Coverage is limited to a maximum of %g USDC per policy. ", reg.Limitations.MaxCoverageAmount)
		case "regulatory-status":
			b.WriteString("The platform is not a licensed insurance provider in all jurisdictions. ")
			b.WriteString("Its regulatory status may limit your legal recourse in case of disputes. ")
		}
	}
	return b.String()
}

// Revoke terminally revokes a registration. Operator action; never reversed.
func (r *Registrar) Revoke(ctx context.Context, regID id.RegistrationID) error {
	reg, err := r.store.FindByID(ctx, regID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "sandbox registration not found")
	}
	if err := reg.CanRevoke(); err != nil {
		return err
	}
	reg.ApplyRevocation(requestcontext.Now(ctx))
	if err := r.store.Update(ctx, reg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update sandbox registration")
	}

	r.logger.WarnContext(ctx, "sandbox registration revoked", "registration_id", regID)
	r.emit(ctx, audit.Event{
		RegistrationID: regID,
		Action:         audit.EventSandboxRevoked,
		Reason:         string(reg.Program),
	})
	return nil
}

// ExpireDue advances every registration whose validity window has closed to
// expired. Returns the number of registrations expired.
func (r *Registrar) ExpireDue(ctx context.Context) (int, error) {
	regs, err := r.store.List(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list sandbox registrations")
	}

	now := requestcontext.Now(ctx)
	expired := 0
	for _, reg := range regs {
		if reg.CanExpire(now) != nil {
			continue
		}
		reg.ApplyExpiry(now)
		if err := r.store.Update(ctx, reg); err != nil {
			return expired, dErrors.Wrap(err, dErrors.CodeInternal, "failed to expire sandbox registration")
		}
		expired++
	}
	return expired, nil
}

// NextReportingDeadline returns the earliest upcoming report due date for a
// registration, or the zero time if none is scheduled.
func (r *Registrar) NextReportingDeadline(reg *Registration, now time.Time) time.Time {
	var earliest time.Time
	for _, entry := range reg.Reporting {
		if !entry.NextDue.After(now) {
			continue
		}
		if earliest.IsZero() || entry.NextDue.Before(earliest) {
			earliest = entry.NextDue
		}
	}
	return earliest
}

// SubmitReport produces the aggregate snapshot for one scheduled report and
// advances its next-due date by the report's cadence.
func (r *Registrar) SubmitReport(ctx context.Context, regID id.RegistrationID, reportType string) (ReportSnapshot, error) {
	if r.reporter == nil {
		return ReportSnapshot{}, dErrors.New(dErrors.CodeUnavailable, "no reporter configured")
	}

	reg, err := r.store.FindByID(ctx, regID)
	if err != nil {
		return ReportSnapshot{}, dErrors.Wrap(err, dErrors.CodeNotFound, "sandbox registration not found")
	}

	idx := -1
	for i, entry := range reg.Reporting {
		if entry.ReportType == reportType {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ReportSnapshot{}, dErrors.Newf(dErrors.CodeInvalidInput, "no scheduled report of type %q", reportType)
	}

	snapshot, err := r.reporter.Snapshot(ctx)
	if err != nil {
		return ReportSnapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build report snapshot")
	}

	now := requestcontext.Now(ctx)
	reg.Reporting[idx].NextDue = reg.Reporting[idx].Frequency.Next(now)
	reg.UpdatedAt = now
	if err := r.store.Update(ctx, reg); err != nil {
		return ReportSnapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to advance reporting schedule")
	}

	r.logger.InfoContext(ctx, "regulatory report produced",
		"registration_id", regID,
		"report_type", reportType,
		"next_due", reg.Reporting[idx].NextDue,
	)
	r.emit(ctx, audit.Event{
		RegistrationID: regID,
		Action:         audit.EventReportSubmitted,
		Reason:         reportType,
	})
	return snapshot, nil
}

func (r *Registrar) emit(ctx context.Context, event audit.Event) {
	if r.audit == nil {
		return
	}
	if err := r.audit.Emit(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
