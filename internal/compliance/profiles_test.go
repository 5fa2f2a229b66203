package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
)

type fakeDetector struct {
	country string
	region  string
	err     error
}

func (f *fakeDetector) Detect(context.Context, id.PartyID) (string, string, error) {
	return f.country, f.region, f.err
}

func TestProfileDeclare(t *testing.T) {
	store := NewInMemoryProfiles()
	svc, err := NewProfileService(store)
	require.NoError(t, err)
	party := id.PartyID(uuid.New())

	profile, err := svc.Declare(context.Background(), party, "sg", "")
	require.NoError(t, err)
	require.Equal(t, jurisdiction.CodeSG, profile.Jurisdiction.Code())
	require.Equal(t, TierNone, profile.KYC)

	_, err = svc.AdvanceKYC(context.Background(), party)
	require.NoError(t, err)

	// Re-declaring a location must not reset the verification tier.
	profile, err = svc.Declare(context.Background(), party, "FR", "")
	require.NoError(t, err)
	require.Equal(t, jurisdiction.CodeEU, profile.Jurisdiction.Code())
	require.Equal(t, TierBasic, profile.KYC)
}

func TestProfileDetect(t *testing.T) {
	t.Run("records automatic detection", func(t *testing.T) {
		store := NewInMemoryProfiles()
		svc, err := NewProfileService(store,
			WithProfileResolver(jurisdiction.NewResolver(&fakeDetector{country: "gb"})))
		require.NoError(t, err)

		profile, err := svc.Detect(context.Background(), id.PartyID(uuid.New()))
		require.NoError(t, err)
		require.Equal(t, jurisdiction.CodeUK, profile.Jurisdiction.Code())
		require.Equal(t, jurisdiction.DetectionAutomatic, profile.Jurisdiction.Method)
	})

	t.Run("detection failure leaves profile unset", func(t *testing.T) {
		store := NewInMemoryProfiles()
		svc, err := NewProfileService(store,
			WithProfileResolver(jurisdiction.NewResolver(&fakeDetector{err: errors.New("geo down")})))
		require.NoError(t, err)
		party := id.PartyID(uuid.New())

		_, err = svc.Detect(context.Background(), party)
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

		_, ok, err := store.Profile(context.Background(), party)
		require.NoError(t, err)
		require.False(t, ok)
	})
}
