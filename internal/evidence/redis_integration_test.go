//go:build integration

package evidence_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"peershield/internal/evidence"
	"peershield/internal/platform/redis"
	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
	"peershield/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := evidence.NewRedisStore(&redis.Client{Client: rc.Client})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		hash, err := store.Store(ctx, id.PartyID(uuid.New()), []byte("chat transcript"))
		require.NoError(t, err)
		require.Equal(t, evidence.Hash([]byte("chat transcript")), hash)

		payload, err := store.Retrieve(ctx, hash)
		require.NoError(t, err)
		require.Equal(t, []byte("chat transcript"), payload)
	})

	t.Run("missing hash", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		_, err := store.Retrieve(ctx, evidence.Hash([]byte("never stored")))
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("idempotent put", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		owner := id.PartyID(uuid.New())
		first, err := store.Store(ctx, owner, []byte("payload"))
		require.NoError(t, err)
		second, err := store.Store(ctx, owner, []byte("payload"))
		require.NoError(t, err)
		require.Equal(t, first, second)
	})
}
