package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

const nonceKeyTemplate = "v1:validation-nonce:%s:%s"

// NonceStore records consumed webhook nonces. A nonce is claimed with a
// single SET NX EX, so concurrent replays across instances race on one
// atomic write and exactly one wins. Records self-expire after the
// signature tolerance window, matching the freshness check.
type NonceStore struct {
	client *redis.Client
}

// NewNonceStore creates a Redis-backed nonce store.
func NewNonceStore(client *redis.Client) *NonceStore {
	return &NonceStore{client: client}
}

// Claim reserves (orgName, nonce) for ttl. Returns false when the nonce
// was already consumed.
func (s *NonceStore) Claim(ctx context.Context, orgName, nonce string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf(nonceKeyTemplate, orgName, nonce)
	claimed, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim nonce: %w", err)
	}
	return claimed, nil
}

var _ domain.NonceStore = (*NonceStore)(nil)
