package compliance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"peershield/internal/jurisdiction"
	"peershield/internal/registry"
	"peershield/internal/sandbox"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/requestcontext"
)

// staticPool answers fee lookups with the US pool figures.
type staticPool struct{}

func (staticPool) FeeStructure(jurisdictions []jurisdiction.Code) (float64, float64) {
	if len(jurisdictions) == 1 && jurisdictions[0] == jurisdiction.CodeUS {
		return 60, 0.05
	}
	return 50, 0.05
}

type EngineSuite struct {
	suite.Suite
	engine    *Engine
	profiles  *InMemoryProfiles
	registrar *sandbox.Registrar
	ctx       context.Context
	now       time.Time
}

func (s *EngineSuite) SetupTest() {
	s.profiles = NewInMemoryProfiles()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	registrar, err := sandbox.New(sandbox.NewInMemoryStore())
	s.Require().NoError(err)
	s.registrar = registrar

	engine, err := NewEngine(s.profiles,
		WithSandboxGate(registrar),
		WithPoolParams(staticPool{}),
	)
	s.Require().NoError(err)
	s.engine = engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) party(countryCode string, tier KYCTier) id.PartyID {
	uj, err := jurisdiction.Manual(countryCode, "")
	s.Require().NoError(err)

	partyID := id.PartyID(uuid.New())
	s.profiles.Upsert(partyID, Profile{Jurisdiction: uj, KYC: tier})
	return partyID
}

func (s *EngineSuite) enrollSandbox(program sandbox.ProgramID) {
	_, err := s.registrar.Enroll(s.ctx, program, s.now, s.now.AddDate(0, 6, 0))
	s.Require().NoError(err)
}

func (s *EngineSuite) TestAuthorize_InputValidation() {
	s.Run("unknown action", func() {
		_, err := s.engine.Authorize(s.ctx, Request{Action: "transfer_funds", PartyID: id.PartyID(uuid.New())})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing party", func() {
		_, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("negative amount", func() {
		_, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: id.PartyID(uuid.New()), Amount: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *EngineSuite) TestAuthorize_FailsClosedWithoutJurisdiction() {
	result, err := s.engine.Authorize(s.ctx, Request{
		Action:  ActionCreatePolicy,
		PartyID: id.PartyID(uuid.New()),
		Amount:  100,
	})
	s.Require().NoError(err)

	s.False(result.Approved)
	s.Equal("User jurisdiction not set", result.Reason)
	s.True(result.RequiresAdditionalVerification)
	s.Equal([]string{"Set user jurisdiction"}, result.AdditionalRequirements)
}

func (s *EngineSuite) TestPolicyCreation_KYCGating() {
	s.Run("unverified party above the basic ceiling is denied", func() {
		partyID := s.party("US", TierNone)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: partyID, Amount: 400})
		s.Require().NoError(err)

		s.False(result.Approved)
		s.Equal("KYC level enhanced required for this coverage amount", result.Reason)
		s.True(result.RequiresAdditionalVerification)
		s.Equal([]string{"Complete basic KYC verification"}, result.AdditionalRequirements)
	})

	s.Run("basic tier covers amounts up to the basic ceiling", func() {
		partyID := s.party("US", TierBasic)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: partyID, Amount: 250})
		s.Require().NoError(err)
		s.True(result.Approved)
	})

	s.Run("basic tier above its ceiling needs enhanced verification", func() {
		partyID := s.party("US", TierBasic)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: partyID, Amount: 500})
		s.Require().NoError(err)

		s.False(result.Approved)
		s.Equal("KYC level enhanced required for this coverage amount", result.Reason)
		s.Equal([]string{"Complete enhanced KYC verification"}, result.AdditionalRequirements)
	})

	s.Run("full tier is unbounded", func() {
		partyID := s.party("US", TierFull)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: partyID, Amount: 1_000_000})
		s.Require().NoError(err)
		s.True(result.Approved)
	})
}

func (s *EngineSuite) TestPolicyCreation_SandboxGating() {
	s.Run("amount above the sandbox cap is denied with verbatim disclosure", func() {
		s.enrollSandbox(sandbox.EUDLTPilot)
		partyID := s.party("DE", TierFull)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: partyID, Amount: 10001})
		s.Require().NoError(err)

		s.False(result.Approved)
		s.Equal("Coverage amount exceeds sandbox limit of 10000 USDC", result.Reason)
		s.Require().Len(result.Disclosures, 1)
		s.Contains(result.Disclosures[0], "Coverage is limited to a maximum of 10000 USDC per policy.")
	})

	s.Run("approval under a sandbox carries its disclosure text", func() {
		s.enrollSandbox(sandbox.EUDLTPilot)
		partyID := s.party("FR", TierFull)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: partyID, Amount: 5000})
		s.Require().NoError(err)

		s.True(result.Approved)
		s.Require().Len(result.Disclosures, 2)
		s.Contains(result.Disclosures[0], "IMPORTANT REGULATORY DISCLOSURE:")
		s.Contains(result.Disclosures[1], "Solvency II")
	})

	s.Run("no sandbox means only jurisdiction disclosures", func() {
		partyID := s.party("US", TierFull)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionCreatePolicy, PartyID: partyID, Amount: 5000})
		s.Require().NoError(err)

		s.True(result.Approved)
		s.Require().Len(result.Disclosures, 1)
		s.Contains(result.Disclosures[0], "PeerShield operates under the regulatory frameworks of")
	})
}

func (s *EngineSuite) TestClaimSubmission() {
	s.Run("below the automatic payout ceiling passes clean", func() {
		partyID := s.party("US", TierBasic)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionSubmitClaim, PartyID: partyID, Amount: 200})
		s.Require().NoError(err)

		s.True(result.Approved)
		s.False(result.RequiresAdditionalVerification)
	})

	s.Run("above the automatic payout ceiling is flagged for review", func() {
		partyID := s.party("US", TierBasic)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionSubmitClaim, PartyID: partyID, Amount: 300})
		s.Require().NoError(err)

		s.True(result.Approved)
		s.True(result.RequiresAdditionalVerification)
		s.Equal([]string{"Claim requires manual review"}, result.AdditionalRequirements)
		s.Equal([]string{
			"Claims above 250 USDC require manual review.",
			"Review process may take up to 5 business days.",
		}, result.Disclosures)
	})

	s.Run("above the mandatory review threshold needs documentation and an adjuster", func() {
		partyID := s.party("US", TierBasic)

		result, err := s.engine.Authorize(s.ctx, Request{Action: ActionSubmitClaim, PartyID: partyID, Amount: 800})
		s.Require().NoError(err)

		s.True(result.Approved)
		s.Equal([]string{
			"Claim requires manual review",
			"Enhanced documentation required",
			"Adjuster review required",
		}, result.AdditionalRequirements)
	})
}

func (s *EngineSuite) TestDisputeCreation() {
	s.Run("domestic low-value dispute routes on-chain with fee advisory", func() {
		partyID := s.party("US", TierFull)

		result, err := s.engine.Authorize(s.ctx, Request{
			Action:             ActionOpenDispute,
			PartyID:            partyID,
			Amount:             800,
			PolicyJurisdiction: jurisdiction.CodeUS,
		})
		s.Require().NoError(err)

		s.True(result.Approved)
		s.Equal([]string{
			"Dispute fee: 100 USDC",
			"Response window: 7 days",
			"Expected resolution time: 14 days",
		}, result.AdditionalRequirements)
		s.Equal([]string{"This dispute will be handled through On-Chain Arbitration."}, result.Disclosures)
	})

	s.Run("cross-border dispute escalates to hybrid and says so", func() {
		partyID := s.party("DE", TierFull)

		result, err := s.engine.Authorize(s.ctx, Request{
			Action:             ActionOpenDispute,
			PartyID:            partyID,
			Amount:             5000,
			PolicyJurisdiction: jurisdiction.CodeUS,
		})
		s.Require().NoError(err)

		s.True(result.Approved)
		s.Contains(result.Disclosures, "This dispute will be handled through Hybrid Arbitration.")
		s.Contains(result.Disclosures, "This is a cross-border dispute and may be subject to additional requirements.")
	})
}

func TestRequiredTier(t *testing.T) {
	us, err := jurisdiction.Lookup(jurisdiction.CodeUS)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		amount float64
		want   KYCTier
	}{
		{100, TierBasic},
		{250, TierBasic},
		{251, TierEnhanced},
		{2000, TierEnhanced},
		{2001, TierFull},
	}
	for _, tt := range tests {
		if got := requiredTier(us.KYC, tt.amount); got != tt.want {
			t.Errorf("requiredTier(%v) = %s, want %s", tt.amount, got, tt.want)
		}
	}
}

func TestKYCTierOrdering(t *testing.T) {
	tiers := []KYCTier{TierNone, TierBasic, TierEnhanced, TierFull}
	for i := 1; i < len(tiers); i++ {
		if tiers[i-1].Rank() >= tiers[i].Rank() {
			t.Fatalf("%s should rank below %s", tiers[i-1], tiers[i])
		}
	}
}

func (s *EngineSuite) TestSanctionsScreening() {
	engine, err := NewEngine(s.profiles,
		WithSandboxGate(s.registrar),
		WithSanctions(registry.MockSanctionsClient{Listed: true}),
	)
	s.Require().NoError(err)

	party := s.party("US", TierFull)
	result, err := engine.Authorize(s.ctx, Request{
		Action:  ActionCreatePolicy,
		PartyID: party,
		Amount:  500,
	})
	s.Require().NoError(err)
	s.False(result.Approved)
	s.Contains(result.Reason, "sanctions registry")

	// Unknown parties still fail closed on jurisdiction before screening runs.
	result, err = engine.Authorize(s.ctx, Request{
		Action:  ActionCreatePolicy,
		PartyID: id.PartyID(uuid.New()),
		Amount:  500,
	})
	s.Require().NoError(err)
	s.Equal("User jurisdiction not set", result.Reason)
}
