package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCounter is the subset of *redis.Client the limiter uses.
type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RedisLimiter is a fixed-window limiter shared by every instance pointed at
// the same Redis. Each key may make Limit requests per Window.
type RedisLimiter struct {
	client redisCounter
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client redisCounter, limit int, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &RedisLimiter{client: client, prefix: "carelink:ratelimit:", limit: limit, window: window, now: time.Now}
}

// NewRedisLimiterFromConfig spreads RequestsPerSecond over a one-second
// window, allowing the configured burst on top.
func NewRedisLimiterFromConfig(client *redis.Client, cfg RateLimitConfig) *RedisLimiter {
	limit := int(cfg.RequestsPerSecond)
	if cfg.BurstSize > limit {
		limit = cfg.BurstSize
	}
	return NewRedisLimiter(client, limit, time.Second)
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	win := now.UnixNano() / int64(l.window)
	k := l.prefix + key + ":" + strconv.FormatInt(win, 10)

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	d := Decision{Limit: l.limit, Remaining: l.limit - int(n)}
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	d.Allowed = int(n) <= l.limit
	if !d.Allowed {
		end := time.Unix(0, (win+1)*int64(l.window))
		d.RetryAfter = end.Sub(now)
	}
	return d, nil
}
