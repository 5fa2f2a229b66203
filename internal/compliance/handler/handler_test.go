package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peershield/internal/compliance"
	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	"peershield/pkg/requestcontext"
)

func newRouter(t *testing.T, party id.PartyID) (chi.Router, *compliance.InMemoryProfiles) {
	t.Helper()
	profiles := compliance.NewInMemoryProfiles()
	engine, err := compliance.NewEngine(profiles)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if !party.IsNil() {
				ctx = requestcontext.WithPartyID(ctx, party)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	profileService, err := compliance.NewProfileService(profiles)
	require.NoError(t, err)
	New(engine, profileService, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r, profiles
}

func do(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		reader = &buf
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func check(t *testing.T, r chi.Router, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, "/compliance/check", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleCheck(t *testing.T) {
	t.Run("approves verified party", func(t *testing.T) {
		party := id.PartyID(uuid.New())
		r, profiles := newRouter(t, party)
		uj, err := jurisdiction.Manual("US", "")
		require.NoError(t, err)
		profiles.Upsert(party, compliance.Profile{
			Jurisdiction: uj,
			KYC:          compliance.TierEnhanced,
		})

		w := check(t, r, CheckRequest{Action: "create_policy", Amount: 500})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var result compliance.CheckResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		require.True(t, result.Approved)
	})

	t.Run("unknown party fails closed", func(t *testing.T) {
		r, _ := newRouter(t, id.PartyID(uuid.New()))

		w := check(t, r, CheckRequest{Action: "create_policy", Amount: 500})
		require.Equal(t, http.StatusOK, w.Code)

		var result compliance.CheckResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
		require.False(t, result.Approved)
		require.Equal(t, "User jurisdiction not set", result.Reason)
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		r, _ := newRouter(t, id.PartyID(uuid.New()))

		w := check(t, r, CheckRequest{Action: "mint_tokens", Amount: 500})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("requires authentication", func(t *testing.T) {
		r, _ := newRouter(t, id.PartyID{})

		w := check(t, r, CheckRequest{Action: "create_policy", Amount: 500})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestProfileEndpoints(t *testing.T) {
	t.Run("declare then read back", func(t *testing.T) {
		r, _ := newRouter(t, id.PartyID(uuid.New()))

		w := do(t, r, http.MethodPut, "/compliance/profile", DeclareRequest{Country: "de", Region: "Bavaria"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var profile ProfileResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&profile))
		require.Equal(t, "DE", profile.Country)
		require.Equal(t, "EU", profile.Jurisdiction)
		require.Equal(t, "manual", profile.DetectionMethod)
		require.Equal(t, "none", profile.KYCTier)

		w = do(t, r, http.MethodGet, "/compliance/profile", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing profile is not found", func(t *testing.T) {
		r, _ := newRouter(t, id.PartyID(uuid.New()))

		w := do(t, r, http.MethodGet, "/compliance/profile", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("declare requires a country", func(t *testing.T) {
		r, _ := newRouter(t, id.PartyID(uuid.New()))

		w := do(t, r, http.MethodPut, "/compliance/profile", DeclareRequest{Country: "  "})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("detect without a detector is unavailable", func(t *testing.T) {
		r, _ := newRouter(t, id.PartyID(uuid.New()))

		w := do(t, r, http.MethodPost, "/compliance/profile/detect", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestAdvanceKYC(t *testing.T) {
	party := id.PartyID(uuid.New())
	r, _ := newRouter(t, party)

	w := do(t, r, http.MethodPost, "/compliance/kyc/advance", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPut, "/compliance/profile", DeclareRequest{Country: "US"})
	require.Equal(t, http.StatusOK, w.Code)

	for _, want := range []string{"basic", "enhanced", "full"} {
		w = do(t, r, http.MethodPost, "/compliance/kyc/advance", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var profile ProfileResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&profile))
		require.Equal(t, want, profile.KYCTier)
	}

	w = do(t, r, http.MethodPost, "/compliance/kyc/advance", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}
