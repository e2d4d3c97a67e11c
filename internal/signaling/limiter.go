package signaling

import (
	"context"
	"time"

	"call-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// ConnLimiter caps concurrent gateway streams per user across nodes.
type ConnLimiter interface {
	Acquire(ctx context.Context, userID string) (bool, error)
	Release(ctx context.Context, userID string) error
}

// RedisConnLimiter counts streams in a Redis key per user.
type RedisConnLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	ttl    time.Duration
}

// NewRedisConnLimiter allows limit streams per user. ttl bounds how long a
// node that died without releasing keeps its slots.
func NewRedisConnLimiter(rdb *redis.Client, prefix string, limit int, ttl time.Duration) *RedisConnLimiter {
	if prefix == "" {
		prefix = "calls"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisConnLimiter{rdb: rdb, prefix: prefix, limit: limit, ttl: ttl}
}

func (l *RedisConnLimiter) key(userID string) string {
	return l.prefix + ":conns:" + userID
}

func (l *RedisConnLimiter) Acquire(ctx context.Context, userID string) (bool, error) {
	return utils.AcquireSlot(ctx, l.rdb, l.key(userID), l.limit, l.ttl)
}

func (l *RedisConnLimiter) Release(ctx context.Context, userID string) error {
	return utils.ReleaseSlot(ctx, l.rdb, l.key(userID))
}
