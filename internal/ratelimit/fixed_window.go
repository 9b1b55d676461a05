package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

const redisTimeout = 2 * time.Second

// FixedWindowLimiter limits requests per key in a fixed time window shared
// by every replica through Redis.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	prefix string
	client redis.Scripter
	now    func() time.Time
}

// NewRedisFixedWindowLimiter creates a Redis-backed distributed limiter.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	return NewFixedWindowLimiter(redis.NewClient(&redis.Options{Addr: addr, Password: password}), prefix, limit, window)
}

// NewFixedWindowLimiter wraps an existing Redis client.
func NewFixedWindowLimiter(client redis.Scripter, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	if client == nil {
		return nil, errors.New("rate limiter redis client is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "dreamdecode:ratelimit"
	}
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
		prefix: prefix,
		client: client,
		now:    time.Now,
	}, nil
}

// Allow returns true when the key is within quota.
// Redis failures fail closed.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return false
	}
	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		return true
	}
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, normalizeKey(strings.TrimSpace(key)), slot)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false
	}
	return count <= int64(l.limit)
}
