//go:build integration

package ledger_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"peershield/internal/ledger"
	id "peershield/pkg/domain"
	"peershield/pkg/testutil/containers"
)

func TestKafkaGateway(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rp := containers.NewRedpandaContainer(t)
	const topic = "peershield.settlement.requests"

	gw, err := ledger.NewKafkaGateway(rp.Brokers, topic)
	require.NoError(t, err)
	t.Cleanup(gw.Close)

	require.NoError(t, gw.EnsureTopic(ctx, 1, 1))
	// Idempotent when the topic already exists.
	require.NoError(t, gw.EnsureTopic(ctx, 1, 1))

	want := ledger.SettlementRequest{
		DisputeID:   id.DisputeID(uuid.New()),
		Payee:       id.PartyID(uuid.New()),
		Amount:      750,
		Currency:    "USDC",
		RequestedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, gw.RequestSettlement(ctx, want))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	require.Equal(t, want.DisputeID.String(), string(records[0].Key))

	var got ledger.SettlementRequest
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	require.Equal(t, want.DisputeID, got.DisputeID)
	require.Equal(t, want.Payee, got.Payee)
	require.Equal(t, want.Amount, got.Amount)
	require.Equal(t, want.Currency, got.Currency)
}
