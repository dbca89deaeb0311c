package ratelimit

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter shares counters across instances through redis.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	prefix string
}

func NewRedisLimiter(client *redis.Client, cfg Config, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, cfg: cfg.normalize(), prefix: prefix}
}

// Allow fails open: when redis is unreachable the request is allowed and the
// error is returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true, fmt.Errorf("redis incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.cfg.Window).Err(); err != nil {
			return true, fmt.Errorf("redis expire: %w", err)
		}
	}
	return count <= int64(l.cfg.Requests), nil
}
