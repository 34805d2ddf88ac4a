// Package ratelimit gates paid inference calls with a pluggable limiter.
//
// The built-in MemoryLimiter is an in-memory token bucket per key
// (typically the inference model identifier). The Limiter interface is
// the contract so deployments can substitute their own policy.
package ratelimit

import "context"

// Limiter decides whether a paid call identified by key should proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow returns true if the call should proceed. The key is opaque;
	// callers construct it (e.g. the inference model id). An error
	// signals a limiter malfunction; callers should fail open (permit
	// the call) rather than block the analysis pipeline.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases resources (cleanup goroutines).
	Close() error
}

// NoopLimiter permits every call. Used when local rate limiting is
// disabled and only the remote service's own limits apply.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
