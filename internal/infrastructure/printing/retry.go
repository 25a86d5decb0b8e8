package printing

import (
	"context"
	"time"
)

// Backoff returns the delay before the given retry. attempt is 1-indexed and
// names the attempt that just failed.
type Backoff func(attempt int) time.Duration

// FixedBackoff waits the same delay after every failure.
func FixedBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// NoBackoff retries immediately.
func NoBackoff(int) time.Duration { return 0 }

// RetryPolicy retries every failure identically until MaxAttempts is reached.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
}

// DefaultRetryPolicy is three attempts one second apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: FixedBackoff(time.Second)}
}

// Do runs fn until it succeeds, the attempts are used up or ctx is done. It
// returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	attempts := max(p.MaxAttempts, 1)
	backoff := p.Backoff
	if backoff == nil {
		backoff = NoBackoff
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return attempt, nil
		}
		if attempt == attempts {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, err
		}
		if wait := backoff(attempt); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, err
			case <-timer.C:
			}
		}
	}
	return attempts, err
}
