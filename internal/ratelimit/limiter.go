// Package ratelimit throttles callers of the AI-backed endpoints. Each
// processing request costs a generative-AI call, so quotas are per client key.
package ratelimit

import "context"

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

func normalizeKey(key string) string {
	if key == "" {
		return "unknown"
	}
	return key
}
