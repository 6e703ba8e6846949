package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle limits sign-in attempts per key.
type Throttle interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// NoThrottle allows every attempt.
type NoThrottle struct{}

func (NoThrottle) Allow(context.Context, string) (bool, error) { return true, nil }

// RedisThrottle is a fixed-window attempt counter kept in Redis.
type RedisThrottle struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisThrottle allows limit attempts per key in every window.
func NewRedisThrottle(client *redis.Client, limit int, window time.Duration) *RedisThrottle {
	return &RedisThrottle{client: client, prefix: "roomchat:signin:", limit: int64(limit), window: window}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, error) {
	fullKey := t.prefix + key

	count, err := t.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return true, fmt.Errorf("throttle incr: %w", err)
	}
	if count == 1 {
		if err := t.client.Expire(ctx, fullKey, t.window).Err(); err != nil {
			return true, fmt.Errorf("throttle expire: %w", err)
		}
	}
	return count <= t.limit, nil
}
