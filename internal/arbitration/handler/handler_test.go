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

	"peershield/internal/arbitration"
	"peershield/internal/jurisdiction"
)

func newRouter(t *testing.T) chi.Router {
	t.Helper()
	manager, err := arbitration.NewManager(arbitration.NewInMemoryStore())
	require.NoError(t, err)

	r := chi.NewRouter()
	New(manager, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func post(t *testing.T, r chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLookup(t *testing.T) {
	r := newRouter(t)

	w := post(t, r, "/arbitrators", RegisterRequest{
		Name:            "Alice",
		Jurisdictions:   []string{"eu", "US"},
		Specializations: []string{"insurance"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	require.NotEmpty(t, created.APIKey)
	require.Equal(t, []jurisdiction.Code{jurisdiction.CodeEU, jurisdiction.CodeUS}, created.Arbitrator.Jurisdictions)

	req := httptest.NewRequest(http.MethodGet, "/arbitrators/"+created.Arbitrator.ID.String(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var fetched arbitration.Arbitrator
	require.NoError(t, json.NewDecoder(w.Body).Decode(&fetched))
	require.Equal(t, "Alice", fetched.Name)
	require.True(t, fetched.Active)
}

func TestRegisterValidation(t *testing.T) {
	r := newRouter(t)

	w := post(t, r, "/arbitrators", RegisterRequest{Name: "", Jurisdictions: []string{"EU"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = post(t, r, "/arbitrators", RegisterRequest{Name: "Bob", Jurisdictions: []string{"XX"}})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemove(t *testing.T) {
	r := newRouter(t)

	w := post(t, r, "/arbitrators", RegisterRequest{Name: "Carol", Jurisdictions: []string{"UK"}})
	require.Equal(t, http.StatusCreated, w.Code)
	var created RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))

	req := httptest.NewRequest(http.MethodDelete, "/arbitrators/"+created.Arbitrator.ID.String(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodDelete, "/arbitrators/"+uuid.NewString(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestPools(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/arbitration/pools", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Pools []arbitration.Pool `json:"pools"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	require.Len(t, body.Pools, 5)
}
