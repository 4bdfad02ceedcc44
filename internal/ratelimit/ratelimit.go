// Package ratelimit enforces per-user daily message quotas.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed
// under the given quota. Implementations must be safe for concurrent use.
// Limiter errors are treated as fail-open by callers; a limiter malfunction
// must not block traffic.
type Limiter interface {
	// Allow consumes one unit for key under a per-day limit.
	Allow(ctx context.Context, key string, limit int) (bool, error)

	// Close releases resources (cleanup goroutines).
	Close() error
}

// NoopLimiter permits every request. Used in tests and when quotas are
// disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string, int) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
