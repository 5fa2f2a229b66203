package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	id "peershield/pkg/domain"
	dErrors "peershield/pkg/domain-errors"
	"peershield/pkg/platform/circuit"
)

func settlementFixture() SettlementRequest {
	return SettlementRequest{
		DisputeID:   id.DisputeID(uuid.New()),
		Payee:       id.PartyID(uuid.New()),
		Amount:      500,
		Currency:    "USDC",
		RequestedAt: time.Now(),
	}
}

func TestBreakerGateway(t *testing.T) {
	ctx := context.Background()

	t.Run("passes requests through while closed", func(t *testing.T) {
		inner := NewInMemoryGateway()
		gw := NewBreakerGateway(inner, circuit.New("settlement", circuit.WithFailureThreshold(2)), nil)

		require.NoError(t, gw.RequestSettlement(ctx, settlementFixture()))
		require.Len(t, inner.Requests(), 1)
	})

	t.Run("open circuit reports unavailable", func(t *testing.T) {
		inner := NewInMemoryGateway()
		inner.FailWith(errors.New("broker down"))
		gw := NewBreakerGateway(inner, circuit.New("settlement", circuit.WithFailureThreshold(2)), nil)

		require.Error(t, gw.RequestSettlement(ctx, settlementFixture()))
		require.Error(t, gw.RequestSettlement(ctx, settlementFixture()))

		err := gw.RequestSettlement(ctx, settlementFixture())
		require.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	t.Run("recovery closes the circuit", func(t *testing.T) {
		inner := NewInMemoryGateway()
		inner.FailWith(errors.New("broker down"))
		breaker := circuit.New("settlement", circuit.WithFailureThreshold(1))
		gw := NewBreakerGateway(inner, breaker, nil)

		require.Error(t, gw.RequestSettlement(ctx, settlementFixture()))
		require.True(t, breaker.IsOpen())

		inner.FailWith(nil)
		require.NoError(t, gw.RequestSettlement(ctx, settlementFixture()))
		require.False(t, breaker.IsOpen())
	})
}
