// Package handler exposes sandbox enrollment and reporting endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"peershield/internal/jurisdiction"
	"peershield/internal/sandbox"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/platform/httputil"
	"peershield/pkg/requestcontext"
)

// Service defines the sandbox operations the transport layer needs.
type Service interface {
	Enroll(ctx context.Context, programID sandbox.ProgramID, start, end time.Time) (*sandbox.Registration, error)
	ActiveRegistration(ctx context.Context, code jurisdiction.Code) (*sandbox.Registration, error)
	DisclosureText(reg *sandbox.Registration) string
	Revoke(ctx context.Context, regID id.RegistrationID) error
	SubmitReport(ctx context.Context, regID id.RegistrationID, reportType string) (sandbox.ReportSnapshot, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts sandbox endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/sandbox/registrations", h.HandleEnroll)
	r.Get("/sandbox/registrations/active", h.HandleActive)
	r.Post("/sandbox/registrations/{registrationID}/revoke", h.HandleRevoke)
	r.Post("/sandbox/registrations/{registrationID}/reports", h.HandleSubmitReport)
}

// EnrollRequest is the wire form of a sandbox enrollment.
type EnrollRequest struct {
	Program string    `json:"program"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

func (r *EnrollRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Program = strings.ToUpper(strings.TrimSpace(r.Program))
	if r.Program == "" {
		return dErrors.New(dErrors.CodeBadRequest, "program is required")
	}
	if r.Start.IsZero() || r.End.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "start and end are required")
	}
	return nil
}

// HandleEnroll handles POST /sandbox/registrations.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[EnrollRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	reg, err := h.service.Enroll(ctx, sandbox.ProgramID(req.Program), req.Start, req.End)
	if err != nil {
		h.logger.ErrorContext(ctx, "sandbox enrollment failed",
			"request_id", requestID,
			"program", req.Program,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, reg)
}

// ActiveResponse pairs an active registration with its disclosure text.
type ActiveResponse struct {
	Registration *sandbox.Registration `json:"registration"`
	Disclosure   string                `json:"disclosure,omitempty"`
}

// HandleActive handles GET /sandbox/registrations/active?jurisdiction=EU.
// A jurisdiction with no active sandbox returns an empty registration rather
// than an error; compliance treats that as unrestricted.
func (h *Handler) HandleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("jurisdiction")))
	if raw == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "jurisdiction query parameter is required"))
		return
	}

	reg, err := h.service.ActiveRegistration(ctx, jurisdiction.Code(raw))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := ActiveResponse{Registration: reg}
	if reg != nil {
		resp.Disclosure = h.service.DisclosureText(reg)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevoke handles POST /sandbox/registrations/{registrationID}/revoke.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	regID, ok := h.registrationID(w, r)
	if !ok {
		return
	}

	if err := h.service.Revoke(r.Context(), regID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReportRequest names the regulator report to generate.
type ReportRequest struct {
	Type string `json:"type"`
}

func (r *ReportRequest) Validate() error {
	if r == nil || strings.TrimSpace(r.Type) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "report type is required")
	}
	r.Type = strings.TrimSpace(r.Type)
	return nil
}

// HandleSubmitReport handles POST /sandbox/registrations/{registrationID}/reports.
func (h *Handler) HandleSubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	regID, ok := h.registrationID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ReportRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snapshot, err := h.service.SubmitReport(ctx, regID, req.Type)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) registrationID(w http.ResponseWriter, r *http.Request) (id.RegistrationID, bool) {
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "registration id must be a valid UUID"))
		return id.RegistrationID{}, false
	}
	return regID, true
}
