package ratelimit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedKeys bounds memory when no Redis is configured; past it, idle
// buckets are dropped on the next sweep.
const maxTrackedKeys = 10000

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketLimiter is the single-process fallback used when Redis is not
// configured. Quotas are not shared across replicas.
type TokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    rate.Limit
	burst   int
	idle    time.Duration
	now     func() time.Time
}

// NewTokenBucketLimiter allows limit requests per window with a burst of limit.
func NewTokenBucketLimiter(limit int, window time.Duration) (*TokenBucketLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		idle:    2 * window,
		now:     time.Now,
	}, nil
}

// Allow consumes one token for key.
func (l *TokenBucketLimiter) Allow(_ context.Context, key string) bool {
	if l == nil {
		return false
	}
	key = normalizeKey(strings.TrimSpace(key))
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= maxTrackedKeys {
			l.sweepLocked(now)
		}
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *TokenBucketLimiter) sweepLocked(now time.Time) {
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.buckets, k)
		}
	}
}

// Len reports how many keys are currently tracked.
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
