package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"peershield/internal/audit"
	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/requestcontext"
)

type RegistrarSuite struct {
	suite.Suite
	registrar *Registrar
	store     *InMemoryStore
	trail     *recordingAudit
	ctx       context.Context
	now       time.Time
}

func (s *RegistrarSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.trail = &recordingAudit{}
	registrar, err := New(s.store, WithReporter(staticReporter{}), WithAuditPublisher(s.trail))
	s.Require().NoError(err)
	s.registrar = registrar
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

type recordingAudit struct {
	events []audit.Event
}

func (r *recordingAudit) Emit(_ context.Context, event audit.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *recordingAudit) actions() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

func TestRegistrarSuite(t *testing.T) {
	suite.Run(t, new(RegistrarSuite))
}

func newRegistrationID(t *testing.T) id.RegistrationID {
	t.Helper()
	return id.RegistrationID(uuid.New())
}

type staticReporter struct{}

func (staticReporter) Snapshot(_ context.Context) (ReportSnapshot, error) {
	return ReportSnapshot{
		DisputeCount:        4,
		TotalDisputedAmount: 12500,
		ResolvedCount:       3,
		JurisdictionDistribution: map[jurisdiction.Code]int{
			jurisdiction.CodeEU: 3,
			jurisdiction.CodeUS: 1,
		},
	}, nil
}

func (s *RegistrarSuite) enroll(program ProgramID) *Registration {
	reg, err := s.registrar.Enroll(s.ctx, program, s.now, s.now.AddDate(0, 6, 0))
	s.Require().NoError(err)
	return reg
}

func (s *RegistrarSuite) TestEnroll() {
	s.Run("derives limitations from program configuration", func() {
		reg := s.enroll(EUDLTPilot)

		s.Equal(StatusActive, reg.Status)
		s.Equal(10000.0, reg.Limitations.MaxCoverageAmount)
		s.Equal(5000, reg.Limitations.MaxParticipantCount)
		s.Contains(reg.Limitations.AllowedJurisdictions, jurisdiction.CodeEU)
		s.Len(reg.Reporting, 2)
	})

	s.Run("rejects unknown program", func() {
		_, err := s.registrar.Enroll(s.ctx, ProgramID("MARS_SANDBOX"), s.now, s.now.AddDate(1, 0, 0))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("rejects inverted validity window", func() {
		_, err := s.registrar.Enroll(s.ctx, EUDLTPilot, s.now, s.now.AddDate(0, 0, -1))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *RegistrarSuite) TestActiveRegistration() {
	s.Run("finds the registration covering a jurisdiction", func() {
		want := s.enroll(EUDLTPilot)

		got, err := s.registrar.ActiveRegistration(s.ctx, jurisdiction.CodeEU)
		s.Require().NoError(err)
		s.Require().NotNil(got)
		s.Equal(want.ID, got.ID)
	})

	s.Run("returns nil when no sandbox covers the jurisdiction", func() {
		s.enroll(EUDLTPilot)

		got, err := s.registrar.ActiveRegistration(s.ctx, jurisdiction.CodeSG)
		s.Require().NoError(err)
		s.Nil(got)
	})

	s.Run("ignores revoked registrations", func() {
		reg := s.enroll(UKFCASandbox)
		s.Require().NoError(s.registrar.Revoke(s.ctx, reg.ID))

		got, err := s.registrar.ActiveRegistration(s.ctx, jurisdiction.CodeUK)
		s.Require().NoError(err)
		s.Nil(got)
	})

	s.Run("ignores registrations outside their validity window", func() {
		reg := s.enroll(USInsurtechSandbox)
		staleCtx := requestcontext.WithTime(context.Background(), reg.EndDate.AddDate(0, 0, 1))

		got, err := s.registrar.ActiveRegistration(staleCtx, jurisdiction.CodeUS)
		s.Require().NoError(err)
		s.Nil(got)
	})
}

func (s *RegistrarSuite) TestCheckAction() {
	reg := s.enroll(EUDLTPilot)

	s.Run("allows amount within the coverage cap", func() {
		result := s.registrar.CheckAction(reg, 9000, jurisdiction.CodeEU)
		s.True(result.Allowed)
		s.Empty(result.Reason)
	})

	s.Run("denies amount above the coverage cap", func() {
		result := s.registrar.CheckAction(reg, 10001, jurisdiction.CodeEU)
		s.False(result.Allowed)
		s.Equal("Coverage amount exceeds sandbox limit of 10000 USDC", result.Reason)
	})

	s.Run("denies jurisdiction outside the sandbox", func() {
		result := s.registrar.CheckAction(reg, 100, jurisdiction.CodeUS)
		s.False(result.Allowed)
		s.Equal("Jurisdiction US not allowed in this sandbox", result.Reason)
	})

	s.Run("global sandboxes admit any jurisdiction", func() {
		global := s.enroll(GlobalBlockchainSandbx)
		result := s.registrar.CheckAction(global, 100, jurisdiction.CodeSG)
		s.True(result.Allowed)
	})
}

func (s *RegistrarSuite) TestDisclosureText() {
	reg := s.enroll(EUDLTPilot)
	text := s.registrar.DisclosureText(reg)

	s.Contains(text, "IMPORTANT REGULATORY DISCLOSURE:")
	s.Contains(text, "operating under a regulatory sandbox program")
	s.Contains(text, "Coverage is limited to a maximum of 10000 USDC per policy.")
	s.Contains(text, "not a licensed insurance provider in all jurisdictions")
}

func (s *RegistrarSuite) TestRevoke() {
	s.Run("revocation is terminal", func() {
		reg := s.enroll(EUDLTPilot)

		s.Require().NoError(s.registrar.Revoke(s.ctx, reg.ID))
		err := s.registrar.Revoke(s.ctx, reg.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("unknown registration", func() {
		reg, err := NewRegistration(newRegistrationID(s.T()), EUDLTPilot, s.now, s.now.AddDate(0, 6, 0), s.now)
		s.Require().NoError(err)

		err = s.registrar.Revoke(s.ctx, reg.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegistrarSuite) TestExpireDue() {
	reg := s.enroll(EUDLTPilot)
	surviving := s.enroll(WyomingDAOLLC)

	lateCtx := requestcontext.WithTime(context.Background(), reg.EndDate.AddDate(0, 0, 1))
	expired, err := s.registrar.ExpireDue(lateCtx)
	s.Require().NoError(err)
	s.Equal(2, expired)

	stored, err := s.store.FindByID(s.ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(StatusExpired, stored.Status)

	// both share the six month window so both close
	stored, err = s.store.FindByID(s.ctx, surviving.ID)
	s.Require().NoError(err)
	s.Equal(StatusExpired, stored.Status)
}

func (s *RegistrarSuite) TestReporting() {
	s.Run("next deadline is the earliest scheduled report", func() {
		reg := s.enroll(EUDLTPilot)
		deadline := s.registrar.NextReportingDeadline(reg, s.now)

		s.False(deadline.IsZero())
		s.True(deadline.After(s.now))
	})

	s.Run("submitting a report advances its schedule", func() {
		reg := s.enroll(EUDLTPilot)
		before := reg.Reporting[0].NextDue

		dueCtx := requestcontext.WithTime(context.Background(), before)
		snapshot, err := s.registrar.SubmitReport(dueCtx, reg.ID, "transaction-volume")
		s.Require().NoError(err)
		s.Equal(4, snapshot.DisputeCount)

		stored, err := s.store.FindByID(s.ctx, reg.ID)
		s.Require().NoError(err)
		s.True(stored.Reporting[0].NextDue.After(before))
	})

	s.Run("unknown report type", func() {
		reg := s.enroll(EUDLTPilot)
		_, err := s.registrar.SubmitReport(s.ctx, reg.ID, "carbon-footprint")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *RegistrarSuite) TestAuditTrail() {
	reg := s.enroll(EUDLTPilot)

	dueCtx := requestcontext.WithTime(context.Background(), reg.Reporting[0].NextDue)
	_, err := s.registrar.SubmitReport(dueCtx, reg.ID, "transaction-volume")
	s.Require().NoError(err)

	s.Require().NoError(s.registrar.Revoke(s.ctx, reg.ID))

	s.Equal([]string{
		audit.EventSandboxEnrolled,
		audit.EventReportSubmitted,
		audit.EventSandboxRevoked,
	}, s.trail.actions())
	for _, event := range s.trail.events {
		s.Equal(reg.ID, event.RegistrationID)
	}
	s.Equal("transaction-volume", s.trail.events[1].Reason)
}

func TestFrequencyNext(t *testing.T) {
	now := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		frequency Frequency
		want      time.Time
	}{
		{Weekly, now.AddDate(0, 0, 7)},
		{Monthly, now.AddDate(0, 1, 0)},
		{Quarterly, now.AddDate(0, 3, 0)},
		{Annually, now.AddDate(1, 0, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.frequency), func(t *testing.T) {
			require.Equal(t, tt.want, tt.frequency.Next(now))
		})
	}
}

func TestNeedsRenewal(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg, err := NewRegistration(newRegistrationID(t), EUDLTPilot, now, now.AddDate(0, 0, 60), now)
	require.NoError(t, err)

	require.True(t, reg.NeedsRenewal(now))
	require.False(t, reg.NeedsRenewal(now.AddDate(-1, 0, 0)))
}
