package compliance

// Action is a platform operation that must pass the compliance gate before it
// is performed.
type Action string

const (
	ActionCreatePolicy Action = "create_policy"
	ActionSubmitClaim  Action = "submit_claim"
	ActionOpenDispute  Action = "open_dispute"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreatePolicy, ActionSubmitClaim, ActionOpenDispute:
		return true
	}
	return false
}

// KYCTier is an ordinal verification level. Each tier admits monetary amounts
// up to the corresponding jurisdiction threshold; TierFull is unbounded.
type KYCTier string

const (
	TierNone     KYCTier = "none"
	TierBasic    KYCTier = "basic"
	TierEnhanced KYCTier = "enhanced"
	TierFull     KYCTier = "full"
)

var tierRank = map[KYCTier]int{
	TierNone:     0,
	TierBasic:    1,
	TierEnhanced: 2,
	TierFull:     3,
}

func (t KYCTier) Rank() int {
	return tierRank[t]
}

func (t KYCTier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Next returns the tier one rank above t. TierFull has no successor.
func (t KYCTier) Next() KYCTier {
	switch t {
	case TierNone:
		return TierBasic
	case TierBasic:
		return TierEnhanced
	default:
		return TierFull
	}
}

// CheckResult is the gate's verdict on a proposed action. Denials always carry
// a human-readable reason and a machine-checkable requirement list so callers
// can render next steps. Disclosures are literal regulator-facing strings and
// must be surfaced verbatim.
type CheckResult struct {
	Approved                       bool     `json:"approved"`
	Reason                         string   `json:"reason,omitempty"`
	RequiresAdditionalVerification bool     `json:"requires_additional_verification"`
	AdditionalRequirements         []string `json:"additional_requirements,omitempty"`
	Disclosures                    []string `json:"disclosures,omitempty"`
}
