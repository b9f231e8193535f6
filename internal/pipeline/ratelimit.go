package pipeline

import (
	"context"
	"time"

	"chat-companion/backend/pkg/metrics"

	"golang.org/x/time/rate"
)

// Limiter admits at most calls generations per period across the whole
// process. A caller that would exceed the window blocks until admission;
// it is never rejected outright. Safe for concurrent use.
type Limiter struct {
	lim   *rate.Limiter
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a process-wide limiter for calls per period
func NewLimiter(calls int, period time.Duration) *Limiter {
	return &Limiter{
		lim:   rate.NewLimiter(rate.Limit(float64(calls)/period.Seconds()), calls),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// Wait blocks until the window admits one call or the context is canceled
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.lim.ReserveN(l.now(), 1)
	if !r.OK() {
		// Unreachable with burst >= 1; reserve a defined error path anyway.
		return context.DeadlineExceeded
	}

	delay := r.DelayFrom(l.now())
	metrics.RateLimitWait.Observe(delay.Seconds())
	if delay <= 0 {
		return nil
	}

	if err := l.sleep(ctx, delay); err != nil {
		r.CancelAt(l.now())
		return err
	}
	return nil
}

// sleepCtx sleeps for d unless the context finishes first
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
