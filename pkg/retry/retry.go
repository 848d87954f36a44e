// Package retry runs an operation repeatedly with exponential backoff and jitter.
// The engine uses it for acquiring the per-series recalculation lock and for
// establishing store connections at startup; domain operations never retry.
// No external dependencies - uses only standard library.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrExhausted is wrapped into the final error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// transient marks an error as worth another attempt.
type transient struct{ err error }

func (t *transient) Error() string { return t.err.Error() }
func (t *transient) Unwrap() error { return t.err }

// Again wraps err so that Do tries again. A nil err stays nil.
func Again(err error) error {
	if err == nil {
		return nil
	}
	return &transient{err: err}
}

// IsTransient reports whether err was produced by Again.
func IsTransient(err error) bool {
	var t *transient
	return errors.As(err, &t)
}

// Policy holds backoff parameters.
type Policy struct {
	// Attempts is the total number of tries including the first one.
	Attempts int

	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration

	// MaxDelay caps a single wait.
	MaxDelay time.Duration

	// Factor multiplies the delay after every failed attempt.
	Factor float64

	// Jitter spreads each delay by +/- this fraction (0.0 to 1.0).
	Jitter float64

	// ShouldRetry overrides the default "only errors wrapped with Again" rule.
	ShouldRetry func(error) bool

	// OnRetry is called before sleeping, e.g. for logging.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy returns a Policy with sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Factor:    2.0,
		Jitter:    0.1,
	}
}

// LockPolicy is tuned for contended lock acquisition: many short waits.
func LockPolicy() Policy {
	return Policy{
		Attempts:  5,
		BaseDelay: 50 * time.Millisecond,
		MaxDelay:  time.Second,
		Factor:    2.0,
		Jitter:    0.2,
	}
}

// ConnectPolicy is tuned for waiting on a database or cache at startup.
func ConnectPolicy() Policy {
	return Policy{
		Attempts:  5,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Factor:    2.0,
		Jitter:    0.1,
	}
}

// Do executes op until it succeeds, returns a non-retryable error,
// the context is done, or attempts are exhausted.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.ShouldRetry
	if retryable == nil {
		retryable = IsTransient
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = unwrapTransient(err)

		if !retryable(err) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return errors.Join(ErrExhausted, lastErr)
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.BaseDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func unwrapTransient(err error) error {
	var t *transient
	if errors.As(err, &t) && t == err {
		return t.err
	}
	return err
}

// Do is a convenience wrapper around DefaultPolicy().Do.
func Do(ctx context.Context, op func(ctx context.Context) error) error {
	return DefaultPolicy().Do(ctx, op)
}

// DoWithData is a helper for operations that return data.
func DoWithData[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
