package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

const userKeyTemplate = "v1:users:%s"

// UserRepository stores operator identities as Redis hashes.
type UserRepository struct {
	client *redis.Client
}

// NewUserRepository creates a Redis-backed user repository.
func NewUserRepository(client *redis.Client) *UserRepository {
	return &UserRepository{client: client}
}

// CreateUser writes the user hash. Metadata keys are namespaced so they
// cannot collide with record fields.
func (r *UserRepository) CreateUser(ctx context.Context, user domain.User) error {
	fields := map[string]interface{}{"active": "1"}
	for k, v := range user.Metadata {
		fields["meta:"+k] = v
	}

	key := fmt.Sprintf(userKeyTemplate, user.ID)
	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// EnsureUser reports whether the user id is known.
func (r *UserRepository) EnsureUser(ctx context.Context, userID string) (bool, error) {
	exists, err := r.client.Exists(ctx, fmt.Sprintf(userKeyTemplate, userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists == 1, nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
