// Package ratelimit throttles recipe requests per user over a sliding
// window.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate-limit check.
type Decision struct {
	Allowed   bool
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
}

// RetryAfter returns the wait until the next request would be allowed,
// never negative.
func (d *Decision) RetryAfter(now time.Time) time.Duration {
	if d == nil || d.Allowed {
		return 0
	}

	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}

	return wait
}

// Limiter decides whether a user may issue another recipe request.
type Limiter interface {
	Allow(ctx context.Context, userID int64) (*Decision, error)
}
