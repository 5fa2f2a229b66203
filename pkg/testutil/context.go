package testutil

import (
	"net/http"
	"time"

	id "peershield/pkg/domain"
	"peershield/pkg/requestcontext"
)

// WithPartyID adds a party ID to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the partyID is not a valid UUID, it will not be added to the context.
func WithPartyID(req *http.Request, partyID string) *http.Request {
	if parsed, err := id.ParsePartyID(partyID); err == nil {
		return req.WithContext(requestcontext.WithPartyID(req.Context(), parsed))
	}
	return req
}

// WithArbitratorID adds an arbitrator ID to the request context.
// If the arbitratorID is not a valid UUID, it will not be added to the context.
func WithArbitratorID(req *http.Request, arbitratorID string) *http.Request {
	if parsed, err := id.ParseArbitratorID(arbitratorID); err == nil {
		return req.WithContext(requestcontext.WithArbitratorID(req.Context(), parsed))
	}
	return req
}

// WithRequestTime pins the request-scoped clock for deterministic handler tests.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
