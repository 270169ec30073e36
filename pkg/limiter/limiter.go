package limiter

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outbound calls to an external channel.
type Limiter struct {
	limiter *rate.Limiter
}

// New returns a limiter allowing one event per interval with the given burst.
func New(interval time.Duration, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Wait blocks until an event is permitted or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow reports whether an event may happen now.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Update changes the rate parameters in place.
func (l *Limiter) Update(interval time.Duration, burst int) {
	l.limiter.SetLimit(rate.Every(interval))
	l.limiter.SetBurst(burst)
}
