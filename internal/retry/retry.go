// Package retry runs an operation a bounded number of times with backoff,
// retrying only the errors a classifier marks as transient.
package retry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// Policy controls attempts and backoff.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	// Multiplier grows the delay geometrically. Zero or one with Linear set
	// grows it by InitialDelay per attempt (1s, 2s, 3s).
	Multiplier float64
	Linear     bool
	MaxDelay   time.Duration

	// OnRetry is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep replaces the context-aware timer. Tests use it to skip waiting.
	Sleep func(ctx context.Context, d time.Duration) error
}

// LinearPolicy returns a policy with delays of base, 2*base, ...
func LinearPolicy(attempts int, base time.Duration) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: base, Linear: true}
}

// ExponentialPolicy returns a policy with delays of base, base*mult, ... capped at max.
func ExponentialPolicy(attempts int, base time.Duration, mult float64, max time.Duration) Policy {
	return Policy{MaxAttempts: attempts, InitialDelay: base, Multiplier: mult, MaxDelay: max}
}

// NextDelay returns the backoff after the given 1-indexed attempt.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var delay float64
	if p.Linear || p.Multiplier <= 1 {
		delay = float64(p.InitialDelay) * float64(attempt)
	} else {
		delay = float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned unchanged so callers can
// inspect it with errors.Is/As. A cancelled context stops the loop.
func Do[T any](ctx context.Context, p Policy, retryable Classifier, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, errors.Join(lastErr, err)
			}
			return zero, err
		}

		out, err := fn(ctx, attempt)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if retryable == nil || !retryable(err) || attempt == attempts {
			return zero, err
		}

		delay := p.NextDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, errors.Join(lastErr, serr)
		}
	}
	return zero, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
