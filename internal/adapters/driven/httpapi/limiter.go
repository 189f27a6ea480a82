package httpapi

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles requests client-side so a provider quota is not hit in
// the first place. A nil *Limiter never waits.
type Limiter struct {
	bucket *rate.Limiter
}

// NewLimiter allows perMinute requests per minute with a burst of one.
// perMinute <= 0 returns nil (unlimited).
func NewLimiter(perMinute int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	return l.bucket.Wait(ctx)
}
