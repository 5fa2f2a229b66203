package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "peershield/pkg/domain"
	"peershield/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	PartyID      string
	ArbitratorID string
}

// RequireAuth rejects requests without a valid bearer token and injects the
// authenticated party (and arbitrator, when present) into the context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				unauthorized(w, r, logger, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				ctx := r.Context()
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w, r, logger, "Invalid or expired token")
				return
			}

			partyID, err := id.ParsePartyID(claims.PartyID)
			if err != nil {
				unauthorized(w, r, logger, "Invalid or expired token")
				return
			}

			ctx := requestcontext.WithPartyID(r.Context(), partyID)
			if claims.ArbitratorID != "" {
				if arbID, err := id.ParseArbitratorID(claims.ArbitratorID); err == nil {
					ctx = requestcontext.WithArbitratorID(ctx, arbID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, description string) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","message":"` + description + `"}`)); err != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(ctx),
		)
	}
}
