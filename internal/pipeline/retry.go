package pipeline

import (
	"context"
	"errors"
	"time"
)

// retryAfterHinter is implemented by errors that carry a server wait hint
type retryAfterHinter interface {
	RetryAfter() (time.Duration, bool)
}

// RetryPolicy retries an operation a bounded number of times with
// exponential backoff. The wait before attempt n is Base * 2^n, clamped to
// [Floor, Ceiling]; a server-supplied hint on the previous failure takes
// precedence over the computed wait.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Floor       time.Duration
	Ceiling     time.Duration

	// Retryable decides whether a failure is worth another attempt.
	// A nil Retryable retries everything.
	Retryable func(error) bool

	// Sleep is injectable for tests; defaults to a context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy with the context-aware default sleep
func NewRetryPolicy(maxAttempts int, base, floor, ceiling time.Duration, retryable func(error) bool) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		Base:        base,
		Floor:       floor,
		Ceiling:     ceiling,
		Retryable:   retryable,
		Sleep:       sleepCtx,
	}
}

// Backoff computes the clamped wait before the given attempt (1-based)
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	wait := p.Base << uint(attempt)
	if wait < p.Floor {
		wait = p.Floor
	}
	if wait > p.Ceiling {
		wait = p.Ceiling
	}
	return wait
}

// Do runs fn until it succeeds, a non-retryable failure occurs, the attempt
// budget is exhausted, or the context is canceled. The last failure is
// returned on exhaustion.
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			wait := p.Backoff(attempt)
			var hinter retryAfterHinter
			if errors.As(err, &hinter) {
				if hint, ok := hinter.RetryAfter(); ok {
					wait = hint
				}
			}
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return err
			}
		}

		err = fn()
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return err
}
