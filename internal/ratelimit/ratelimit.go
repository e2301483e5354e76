// Package ratelimit limits requests per key over a time window, backed by
// Redis when configured and process memory otherwise.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds; zero when allowed
}

// Limiter consumes one unit for key and reports whether it fit in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

func retryAfterSeconds(allowed bool, resetAt, now time.Time) int {
	if allowed {
		return 0
	}
	seconds := int(resetAt.Sub(now).Round(time.Second).Seconds())
	if seconds < 1 {
		return 1
	}
	return seconds
}
