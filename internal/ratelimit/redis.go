package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWindow bumps the counter for one window and arms its expiry on first use.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// RedisLimiter shares fixed-window counters across API instances.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
}

// NewRedisLimiter returns a limiter storing counters under prefix.
func NewRedisLimiter(client *redis.Client, prefix string, window time.Duration) *RedisLimiter {
	if window < time.Second {
		window = DefaultWindow
	}
	return &RedisLimiter{client: client, prefix: strings.TrimSpace(prefix), window: window}
}

// Allow increments the caller's counter for the window containing now.
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	size := int64(l.window / time.Second)
	idx := windowIndex(now.Unix(), size)
	reset := time.Unix((idx+1)*size, 0).UTC()

	count, err := incrWindow.Run(ctx, l.client, []string{l.counterKey(key, idx)}, size+1).Int64()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis incr: %w", err)
	}
	remaining := limit - int(count)
	if remaining < 0 {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	return Result{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

func (l *RedisLimiter) counterKey(key string, idx int64) string {
	if l.prefix == "" {
		return fmt.Sprintf("%s:%d", key, idx)
	}
	return fmt.Sprintf("%s:%s:%d", l.prefix, key, idx)
}
