package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thanos-studio/aws-manage-cross-acc-via-assumerole/internal/domain"
)

const rateLimitKeyTemplate = "v1:ratelimit:%s:%d"

// FixedWindowLimiter is a store-backed fixed-window counter shared by all
// service instances. Bursts at window boundaries are an accepted
// imprecision in exchange for O(1) storage and no background sweeping.
type FixedWindowLimiter struct {
	client *redis.Client
	window time.Duration
	max    int64
	logger *slog.Logger

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// NewFixedWindowLimiter creates a limiter allowing max requests per
// subject per window.
func NewFixedWindowLimiter(client *redis.Client, window time.Duration, max int64, logger *slog.Logger) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		client: client,
		window: window,
		max:    max,
		logger: logger.With("component", "rate_limiter"),
		now:    time.Now,
	}
}

// Check atomically increments the counter for the subject's current
// window bucket and fails with ErrRateLimitExceeded once the count passes
// the maximum. The expiry is set only on the increment that created the
// key, so the bucket lives exactly one window.
func (l *FixedWindowLimiter) Check(ctx context.Context, subject string) error {
	bucket := l.now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf(rateLimitKeyTemplate, subject, bucket)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.logger.Warn("failed to set rate limit bucket expiry", "subject", subject, "error", err)
		}
	}
	if count > l.max {
		return fmt.Errorf("%w: subject %s", domain.ErrRateLimitExceeded, subject)
	}
	return nil
}

var _ domain.RateLimiter = (*FixedWindowLimiter)(nil)
