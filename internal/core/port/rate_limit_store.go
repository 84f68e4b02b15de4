package port

import (
	"context"
	"time"
)

// RateLimitStore keeps request timestamps for the per-IP sliding-window limiter
// applied in front of the credential endpoints.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, key string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, key string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, key string, at time.Time) error
	OldestAttempt(ctx context.Context, key string, window time.Duration, reference time.Time) (time.Time, bool, error)
}
