// Package handler exposes arbitrator registry and pool endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"peershield/internal/arbitration"
	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/platform/httputil"
	pstrings "peershield/pkg/platform/strings"
	"peershield/pkg/requestcontext"
)

// Service defines the arbitration registry operations the transport needs.
type Service interface {
	Register(ctx context.Context, name string, jurisdictions []jurisdiction.Code, specializations []string) (*arbitration.Arbitrator, string, error)
	Arbitrator(ctx context.Context, arbID id.ArbitratorID) (*arbitration.Arbitrator, error)
	Remove(ctx context.Context, arbID id.ArbitratorID) error
	Pools() []arbitration.Pool
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts arbitration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/arbitrators", h.HandleRegister)
	r.Get("/arbitrators/{arbitratorID}", h.HandleGet)
	r.Delete("/arbitrators/{arbitratorID}", h.HandleRemove)
	r.Get("/arbitration/pools", h.HandlePools)
}

// RegisterRequest is the wire form of an arbitrator registration.
type RegisterRequest struct {
	Name            string   `json:"name"`
	Jurisdictions   []string `json:"jurisdictions"`
	Specializations []string `json:"specializations,omitempty"`
}

func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	r.Jurisdictions = pstrings.DedupeAndTrim(r.Jurisdictions)
	if len(r.Jurisdictions) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "at least one jurisdiction is required")
	}
	r.Specializations = pstrings.DedupeAndTrimLower(r.Specializations)
	return nil
}

// RegisterResponse returns the profile and the one-time API credential.
type RegisterResponse struct {
	Arbitrator *arbitration.Arbitrator `json:"arbitrator"`
	APIKey     string                  `json:"api_key"`
}

// HandleRegister handles POST /arbitrators. The returned API key is shown
// exactly once; only its hash is stored.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	codes := make([]jurisdiction.Code, 0, len(req.Jurisdictions))
	for _, raw := range req.Jurisdictions {
		codes = append(codes, jurisdiction.Code(strings.ToUpper(strings.TrimSpace(raw))))
	}

	arb, apiKey, err := h.service.Register(ctx, req.Name, codes, req.Specializations)
	if err != nil {
		h.logger.ErrorContext(ctx, "arbitrator registration failed",
			"request_id", requestID,
			"name", req.Name,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, RegisterResponse{Arbitrator: arb, APIKey: apiKey})
}

// HandleGet handles GET /arbitrators/{arbitratorID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	arbID, ok := h.arbitratorID(w, r)
	if !ok {
		return
	}

	arb, err := h.service.Arbitrator(r.Context(), arbID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, arb)
}

// HandleRemove handles DELETE /arbitrators/{arbitratorID}.
func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	arbID, ok := h.arbitratorID(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), arbID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePools handles GET /arbitration/pools.
func (h *Handler) HandlePools(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pools": h.service.Pools()})
}

func (h *Handler) arbitratorID(w http.ResponseWriter, r *http.Request) (id.ArbitratorID, bool) {
	arbID, err := id.ParseArbitratorID(chi.URLParam(r, "arbitratorID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "arbitrator id must be a valid UUID"))
		return id.ArbitratorID{}, false
	}
	return arbID, true
}
