package evidence

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"peershield/internal/platform/redis"
	id "peershield/pkg/domain"
	"peershield/pkg/platform/sentinel"
)

const keyPrefix = "evidence:"

// RedisStore keeps evidence payloads in Redis, keyed by content hash. Entries
// never expire; evidence must outlive the dispute and its appeals.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Store(ctx context.Context, ownerID id.PartyID, payload []byte) (string, error) {
	if err := validatePayload(payload); err != nil {
		return "", err
	}

	hash := Hash(payload)
	if err := s.client.Set(ctx, keyPrefix+hash, payload, 0).Err(); err != nil {
		return "", fmt.Errorf("store evidence %s: %w", hash, err)
	}
	return hash, nil
}

func (s *RedisStore) Retrieve(ctx context.Context, hash string) ([]byte, error) {
	payload, err := s.client.Get(ctx, keyPrefix+hash).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch evidence %s: %w", hash, err)
	}
	return payload, nil
}
