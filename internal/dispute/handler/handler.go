// Package handler exposes the dispute lifecycle over HTTP. It delegates to
// the dispute service without embedding business logic.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"peershield/internal/arbitration"
	"peershield/internal/dispute"
	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/platform/httputil"
	"peershield/pkg/requestcontext"
)

// Service defines the dispute operations the transport layer needs.
type Service interface {
	Create(ctx context.Context, params dispute.CreateParams) (*dispute.Dispute, error)
	GetDispute(ctx context.Context, disputeID id.DisputeID) (*dispute.Dispute, error)
	GetUserDisputes(ctx context.Context, partyID id.PartyID) ([]*dispute.Dispute, error)
	AddEvidence(ctx context.Context, disputeID id.DisputeID, submitter id.PartyID, payload []byte) (*dispute.Dispute, error)
	GetEvidence(ctx context.Context, disputeID id.DisputeID, requester id.PartyID, hash string) ([]byte, error)
	StartArbitration(ctx context.Context, disputeID id.DisputeID) (*dispute.Dispute, error)
	RecordDecision(ctx context.Context, disputeID id.DisputeID, vote arbitration.Vote) (*dispute.Dispute, error)
	RecordJudicialRuling(ctx context.Context, disputeID id.DisputeID, decision arbitration.Decision, amount float64, reason string) (*dispute.Dispute, error)
	Appeal(ctx context.Context, disputeID id.DisputeID, appellant id.PartyID, reason string) (*dispute.Dispute, error)
	Cancel(ctx context.Context, disputeID id.DisputeID, requester id.PartyID) (*dispute.Dispute, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts dispute endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/disputes", h.HandleCreate)
	r.Get("/disputes", h.HandleList)
	r.Get("/disputes/{disputeID}", h.HandleGet)
	r.Post("/disputes/{disputeID}/evidence", h.HandleAddEvidence)
	r.Get("/disputes/{disputeID}/evidence/{hash}", h.HandleGetEvidence)
	r.Post("/disputes/{disputeID}/arbitration", h.HandleStartArbitration)
	r.Post("/disputes/{disputeID}/decisions", h.HandleRecordDecision)
	r.Post("/disputes/{disputeID}/ruling", h.HandleJudicialRuling)
	r.Post("/disputes/{disputeID}/appeal", h.HandleAppeal)
	r.Post("/disputes/{disputeID}/cancel", h.HandleCancel)
}

// HandleCreate handles POST /disputes. The authenticated party becomes the
// initiator.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	partyID, ok := h.requireParty(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Create(ctx, req.ToParams(partyID))
	if err != nil {
		h.logger.ErrorContext(ctx, "dispute creation failed",
			"request_id", requestID,
			"party_id", partyID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

// HandleList handles GET /disputes for the authenticated party.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partyID, ok := h.requireParty(w, ctx)
	if !ok {
		return
	}

	disputes, err := h.service.GetUserDisputes(ctx, partyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"disputes": disputes})
}

// HandleGet handles GET /disputes/{disputeID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}

	d, err := h.service.GetDispute(ctx, disputeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleAddEvidence handles POST /disputes/{disputeID}/evidence.
func (h *Handler) HandleAddEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	partyID, ok := h.requireParty(w, ctx)
	if !ok {
		return
	}
	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[EvidenceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.AddEvidence(ctx, disputeID, partyID, req.Content)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, d)
}

// HandleGetEvidence handles GET /disputes/{disputeID}/evidence/{hash}.
func (h *Handler) HandleGetEvidence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partyID, ok := h.requireParty(w, ctx)
	if !ok {
		return
	}
	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}

	payload, err := h.service.GetEvidence(ctx, disputeID, partyID, chi.URLParam(r, "hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, EvidenceResponse{Content: payload})
}

// HandleStartArbitration handles POST /disputes/{disputeID}/arbitration.
func (h *Handler) HandleStartArbitration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}

	d, err := h.service.StartArbitration(ctx, disputeID)
	if err != nil {
		h.logger.WarnContext(ctx, "arbitration start failed",
			"request_id", requestcontext.RequestID(ctx),
			"dispute_id", disputeID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleRecordDecision handles POST /disputes/{disputeID}/decisions. The
// voting arbitrator comes from the authenticated credential.
func (h *Handler) HandleRecordDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	arbID := requestcontext.ArbitratorID(ctx)
	if arbID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "arbitrator credential required"))
		return
	}
	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.RecordDecision(ctx, disputeID, arbitration.Vote{
		ArbitratorID: arbID,
		Decision:     arbitration.Decision(req.Decision),
		Amount:       req.Amount,
		Reason:       req.Reason,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleJudicialRuling handles POST /disputes/{disputeID}/ruling.
func (h *Handler) HandleJudicialRuling(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[DecisionRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.RecordJudicialRuling(ctx, disputeID, arbitration.Decision(req.Decision), req.Amount, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleAppeal handles POST /disputes/{disputeID}/appeal.
func (h *Handler) HandleAppeal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partyID, ok := h.requireParty(w, ctx)
	if !ok {
		return
	}
	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}

	var req AppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body must be valid JSON"))
		return
	}

	d, err := h.service.Appeal(ctx, disputeID, partyID, req.Reason)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleCancel handles POST /disputes/{disputeID}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	partyID, ok := h.requireParty(w, ctx)
	if !ok {
		return
	}
	disputeID, ok := h.disputeID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Cancel(ctx, disputeID, partyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) requireParty(w http.ResponseWriter, ctx context.Context) (id.PartyID, bool) {
	partyID := requestcontext.PartyID(ctx)
	if partyID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.PartyID{}, false
	}
	return partyID, true
}

func (h *Handler) disputeID(w http.ResponseWriter, r *http.Request) (id.DisputeID, bool) {
	disputeID, err := id.ParseDisputeID(chi.URLParam(r, "disputeID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "dispute id must be a valid UUID"))
		return id.DisputeID{}, false
	}
	return disputeID, true
}
