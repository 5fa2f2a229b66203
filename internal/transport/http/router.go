// Package httptransport assembles the HTTP API from the per-feature handlers.
// Route ownership stays with the feature packages; this package only wires
// middleware and mounts.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	arbitrationhandler "peershield/internal/arbitration/handler"
	compliancehandler "peershield/internal/compliance/handler"
	disputehandler "peershield/internal/dispute/handler"
	"peershield/internal/platform/middleware"
	sandboxhandler "peershield/internal/sandbox/handler"
)

// Services carries the domain services exposed over HTTP.
type Services struct {
	Disputes    disputehandler.Service
	Compliance  compliancehandler.Service
	Profiles    compliancehandler.Profiles
	Arbitration arbitrationhandler.Service
	Sandbox     sandboxhandler.Service
}

// NewRouter builds the full route table. Dispute and compliance endpoints
// require a bearer token when a validator is configured; the arbitration
// registry and sandbox administration are mounted openly and expected to sit
// behind the operator perimeter.
func NewRouter(services Services, validator middleware.JWTValidator, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if validator != nil {
			r.Use(middleware.RequireAuth(validator, logger))
		}
		disputehandler.New(services.Disputes, logger).Register(r)
		compliancehandler.New(services.Compliance, services.Profiles, logger).Register(r)
	})

	arbitrationhandler.New(services.Arbitration, logger).Register(r)
	sandboxhandler.New(services.Sandbox, logger).Register(r)

	return r
}
