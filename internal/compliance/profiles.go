package compliance

import (
	"context"
	"log/slog"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

// ProfileStore extends the read-side directory with writes. The in-memory
// directory satisfies it.
type ProfileStore interface {
	ProfileDirectory
	Upsert(partyID id.PartyID, profile Profile)
}

// ProfileService manages party compliance profiles. Location comes from the
// party's own declaration or, when a detector is configured, from automatic
// geolocation. KYC tiers advance one rank at a time as verification completes.
type ProfileService struct {
	store    ProfileStore
	resolver *jurisdiction.Resolver
	logger   *slog.Logger
}

type ProfileOption func(*ProfileService)

func WithProfileResolver(resolver *jurisdiction.Resolver) ProfileOption {
	return func(s *ProfileService) {
		s.resolver = resolver
	}
}

func WithProfileLogger(logger *slog.Logger) ProfileOption {
	return func(s *ProfileService) {
		s.logger = logger
	}
}

func NewProfileService(store ProfileStore, opts ...ProfileOption) (*ProfileService, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "profile store is required")
	}
	s := &ProfileService{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Declare records a party-supplied location. An existing KYC tier is kept;
// new parties start at TierNone.
func (s *ProfileService) Declare(ctx context.Context, partyID id.PartyID, countryCode, region string) (Profile, error) {
	if partyID.IsNil() {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	uj, err := jurisdiction.Manual(countryCode, region)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{Jurisdiction: uj, KYC: s.currentTier(ctx, partyID)}
	s.store.Upsert(partyID, profile)
	s.logger.InfoContext(ctx, "compliance profile declared",
		"party_id", partyID,
		"country", uj.CountryCode,
		"jurisdiction", uj.Code(),
	)
	return profile, nil
}

// Detect resolves the party's location through the configured geolocation
// detector. Detection failures propagate so the profile stays unset and the
// gate keeps failing closed.
func (s *ProfileService) Detect(ctx context.Context, partyID id.PartyID) (Profile, error) {
	if partyID.IsNil() {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	if s.resolver == nil {
		return Profile{}, dErrors.New(dErrors.CodeUnavailable, "jurisdiction detection is not configured")
	}
	uj, err := s.resolver.Resolve(ctx, partyID)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{Jurisdiction: uj, KYC: s.currentTier(ctx, partyID)}
	s.store.Upsert(partyID, profile)
	return profile, nil
}

// AdvanceKYC moves the party's verification one tier up. The location must be
// set first; a party already at TierFull cannot advance further.
func (s *ProfileService) AdvanceKYC(ctx context.Context, partyID id.PartyID) (Profile, error) {
	if partyID.IsNil() {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	profile, ok, err := s.store.Profile(ctx, partyID)
	if err != nil {
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "looking up compliance profile")
	}
	if !ok {
		return Profile{}, dErrors.New(dErrors.CodeNotFound, "compliance profile not set")
	}
	if profile.KYC == TierFull {
		return Profile{}, dErrors.New(dErrors.CodeStateConflict, "KYC tier is already at its maximum")
	}
	profile.KYC = profile.KYC.Next()
	s.store.Upsert(partyID, profile)
	s.logger.InfoContext(ctx, "KYC tier advanced", "party_id", partyID, "tier", profile.KYC)
	return profile, nil
}

// Lookup returns the party's profile, or NotFound when none was set.
func (s *ProfileService) Lookup(ctx context.Context, partyID id.PartyID) (Profile, error) {
	if partyID.IsNil() {
		return Profile{}, dErrors.New(dErrors.CodeInvalidInput, "party id is required")
	}
	profile, ok, err := s.store.Profile(ctx, partyID)
	if err != nil {
		return Profile{}, dErrors.Wrap(err, dErrors.CodeInternal, "looking up compliance profile")
	}
	if !ok {
		return Profile{}, dErrors.New(dErrors.CodeNotFound, "compliance profile not set")
	}
	return profile, nil
}

func (s *ProfileService) currentTier(ctx context.Context, partyID id.PartyID) KYCTier {
	existing, ok, err := s.store.Profile(ctx, partyID)
	if err != nil || !ok {
		return TierNone
	}
	return existing.KYC
}
