package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

const idempotencyKeyTemplate = "v1:idempotency:%s"

// IdempotencyStore reserves caller-supplied idempotency keys. The claim
// is one SET NX EX round trip: a bare SETNX followed by EXPIRE would
// leave a keyless-TTL window where a crashed instance pins the key
// forever.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a Redis-backed idempotency store with the
// configured claim TTL.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Claim reserves the key. Returns false when it was already claimed
// within the TTL.
func (s *IdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	claimed, err := s.client.SetNX(ctx, fmt.Sprintf(idempotencyKeyTemplate, key), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return claimed, nil
}

var _ domain.IdempotencyStore = (*IdempotencyStore)(nil)
