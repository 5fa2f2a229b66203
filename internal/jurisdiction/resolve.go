package jurisdiction

import (
	"context"
	"strings"

	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// DetectionMethod records how a party's jurisdiction was determined.
type DetectionMethod string

const (
	DetectionAutomatic DetectionMethod = "automatic"
	DetectionManual    DetectionMethod = "manual"
	DetectionFallback  DetectionMethod = "fallback"
)

// UserJurisdiction is a party's resolved location. It is created once per
// party and replaced, never mutated in place, when the party changes it.
type UserJurisdiction struct {
	CountryCode string
	Region      string
	IsEU        bool
	Method      DetectionMethod
}

// Code resolves the user's country to the jurisdiction record that governs
// it. EU member states always resolve to the EU record; lookup tables are
// never keyed by individual member-state codes.
func (u UserJurisdiction) Code() Code {
	if u.IsEU {
		return CodeEU
	}
	switch strings.ToUpper(u.CountryCode) {
	case "US":
		return CodeUS
	case "UK", "GB":
		return CodeUK
	case "SG":
		return CodeSG
	default:
		return CodeGlobal
	}
}

// euMembers is the set of EU member-state ISO country codes.
var euMembers = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {},
	"EE": {}, "FI": {}, "FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {},
	"IT": {}, "LV": {}, "LT": {}, "LU": {}, "MT": {}, "NL": {}, "PL": {},
	"PT": {}, "RO": {}, "SK": {}, "SI": {}, "ES": {}, "SE": {},
}

// IsEUMember reports whether a country code belongs to an EU member state.
func IsEUMember(countryCode string) bool {
	_, ok := euMembers[strings.ToUpper(countryCode)]
	return ok
}

// Detector locates a party's country. Implemented by an external geolocation
// collaborator; a detection failure must be treated as "jurisdiction unset",
// never guessed.
type Detector interface {
	Detect(ctx context.Context, partyID id.PartyID) (countryCode string, region string, err error)
}

// Resolver turns detector output into UserJurisdiction values.
type Resolver struct {
	detector Detector
}

func NewResolver(detector Detector) *Resolver {
	return &Resolver{detector: detector}
}

// Resolve determines a party's jurisdiction via the detector. Detection
// failures propagate as errors so callers fail closed.
func (r *Resolver) Resolve(ctx context.Context, partyID id.PartyID) (UserJurisdiction, error) {
	if r.detector == nil {
		return UserJurisdiction{}, dErrors.New(dErrors.CodeUnavailable, "jurisdiction detector not configured")
	}
	country, region, err := r.detector.Detect(ctx, partyID)
	if err != nil {
		return UserJurisdiction{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "jurisdiction detection failed")
	}
	if country == "" {
		return UserJurisdiction{}, dErrors.New(dErrors.CodeInvalidInput, "jurisdiction detection returned no country")
	}
	return UserJurisdiction{
		CountryCode: strings.ToUpper(country),
		Region:      region,
		IsEU:        IsEUMember(country),
		Method:      DetectionAutomatic,
	}, nil
}

// Manual builds a UserJurisdiction from a party-supplied country code.
func Manual(countryCode, region string) (UserJurisdiction, error) {
	if countryCode == "" {
		return UserJurisdiction{}, dErrors.New(dErrors.CodeInvalidInput, "country code is required")
	}
	return UserJurisdiction{
		CountryCode: strings.ToUpper(countryCode),
		Region:      region,
		IsEU:        IsEUMember(countryCode),
		Method:      DetectionManual,
	}, nil
}
