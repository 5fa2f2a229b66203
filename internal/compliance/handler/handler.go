// Package handler exposes the compliance check endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"peershield/internal/compliance"
	"peershield/internal/jurisdiction"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/platform/httputil"
	"peershield/pkg/requestcontext"
)

// Service defines the compliance operations the transport layer needs.
type Service interface {
	Authorize(ctx context.Context, req compliance.Request) (compliance.CheckResult, error)
}

// Profiles manages party compliance profiles. Implemented by
// *compliance.ProfileService.
type Profiles interface {
	Declare(ctx context.Context, partyID id.PartyID, countryCode, region string) (compliance.Profile, error)
	Detect(ctx context.Context, partyID id.PartyID) (compliance.Profile, error)
	AdvanceKYC(ctx context.Context, partyID id.PartyID) (compliance.Profile, error)
	Lookup(ctx context.Context, partyID id.PartyID) (compliance.Profile, error)
}

type Handler struct {
	service  Service
	profiles Profiles
	logger   *slog.Logger
}

func New(service Service, profiles Profiles, logger *slog.Logger) *Handler {
	return &Handler{service: service, profiles: profiles, logger: logger}
}

// Register mounts compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/compliance/check", h.HandleCheck)
	r.Get("/compliance/profile", h.HandleGetProfile)
	r.Put("/compliance/profile", h.HandleDeclareProfile)
	r.Post("/compliance/profile/detect", h.HandleDetectProfile)
	r.Post("/compliance/kyc/advance", h.HandleAdvanceKYC)
}

// CheckRequest is the wire form of a compliance check.
type CheckRequest struct {
	Action             string  `json:"action"`
	Amount             float64 `json:"amount"`
	PolicyJurisdiction string  `json:"policy_jurisdiction,omitempty"`
}

func (r *CheckRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	if !compliance.Action(r.Action).Valid() {
		return dErrors.New(dErrors.CodeBadRequest, "action must be one of create_policy, submit_claim, open_dispute")
	}
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amount must be positive")
	}
	return nil
}

// HandleCheck handles POST /compliance/check for the authenticated party.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	partyID := requestcontext.PartyID(ctx)
	if partyID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Authorize(ctx, compliance.Request{
		Action:             compliance.Action(req.Action),
		PartyID:            partyID,
		Amount:             req.Amount,
		PolicyJurisdiction: jurisdiction.Code(strings.ToUpper(strings.TrimSpace(req.PolicyJurisdiction))),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "compliance check failed",
			"request_id", requestID,
			"party_id", partyID,
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// ProfileResponse is the wire form of a party's compliance profile.
type ProfileResponse struct {
	Country         string `json:"country"`
	Region          string `json:"region,omitempty"`
	Jurisdiction    string `json:"jurisdiction"`
	DetectionMethod string `json:"detection_method"`
	KYCTier         string `json:"kyc_tier"`
}

func toProfileResponse(p compliance.Profile) ProfileResponse {
	return ProfileResponse{
		Country:         p.Jurisdiction.CountryCode,
		Region:          p.Jurisdiction.Region,
		Jurisdiction:    string(p.Jurisdiction.Code()),
		DetectionMethod: string(p.Jurisdiction.Method),
		KYCTier:         string(p.KYC),
	}
}

// DeclareRequest carries a party-supplied location.
type DeclareRequest struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
}

func (r *DeclareRequest) Validate() error {
	r.Country = strings.ToUpper(strings.TrimSpace(r.Country))
	if r.Country == "" {
		return dErrors.New(dErrors.CodeBadRequest, "country is required")
	}
	return nil
}

// HandleGetProfile handles GET /compliance/profile.
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	partyID, ok := h.requireParty(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.Lookup(r.Context(), partyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

// HandleDeclareProfile handles PUT /compliance/profile.
func (h *Handler) HandleDeclareProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partyID, ok := h.requireParty(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DeclareRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	profile, err := h.profiles.Declare(ctx, partyID, req.Country, req.Region)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

// HandleDetectProfile handles POST /compliance/profile/detect.
func (h *Handler) HandleDetectProfile(w http.ResponseWriter, r *http.Request) {
	partyID, ok := h.requireParty(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.Detect(r.Context(), partyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

// HandleAdvanceKYC handles POST /compliance/kyc/advance.
func (h *Handler) HandleAdvanceKYC(w http.ResponseWriter, r *http.Request) {
	partyID, ok := h.requireParty(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.AdvanceKYC(r.Context(), partyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) requireParty(w http.ResponseWriter, r *http.Request) (id.PartyID, bool) {
	partyID := requestcontext.PartyID(r.Context())
	if partyID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.PartyID{}, false
	}
	return partyID, true
}
