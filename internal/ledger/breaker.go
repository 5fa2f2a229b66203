package ledger

import (
	"context"
	"log/slog"

	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/platform/circuit"
)

// BreakerGateway wraps a Gateway with a circuit breaker. While the circuit is
// open, every settlement request still forwards to the wrapped gateway, since
// a success there is the only way the circuit closes again; failures during
// that window surface as CodeUnavailable instead of the raw produce error.
// Callers already treat publish failures as retryable.
type BreakerGateway struct {
	next    Gateway
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerGateway(next Gateway, breaker *circuit.Breaker, logger *slog.Logger) *BreakerGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerGateway{next: next, breaker: breaker, logger: logger}
}

func (g *BreakerGateway) RequestSettlement(ctx context.Context, req SettlementRequest) error {
	if g.breaker.IsOpen() {
		// Try the broker anyway; a success here is what closes the circuit.
		if err := g.next.RequestSettlement(ctx, req); err != nil {
			g.breaker.RecordFailure()
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "settlement gateway circuit open")
		}
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "settlement gateway circuit closed", "breaker", g.breaker.Name())
		}
		return nil
	}

	if err := g.next.RequestSettlement(ctx, req); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "settlement gateway circuit opened",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		return err
	}
	g.breaker.RecordSuccess()
	return nil
}

func (g *BreakerGateway) Close() {
	g.next.Close()
}
