// Package retry wraps stat-style filesystem calls with bounded exponential
// backoff for errors that are expected to clear on their own, such as a file
// briefly locked by another process or a hiccup on a network share.
package retry

import (
	"context"
	"math/rand"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 500 * time.Millisecond
	// jitter is added on top of each delay, as a fraction of it
	jitterFraction = 0.1
)

// Policy controls how an operation is retried
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// IsTransient decides whether an error is worth another attempt.
	// Nil means IsTransient from this package.
	IsTransient func(error) bool

	// sleep is replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy retries transient OS errors three times starting at 500ms
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		IsTransient: IsTransient,
	}
}

// Do runs op until it succeeds, fails with a non-transient error, or the
// attempts are used up. The last error is returned on exhaustion.
func Do[T any](ctx context.Context, p Policy, op func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	transient := p.IsTransient
	if transient == nil {
		transient = IsTransient
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = op()
		if err == nil {
			return result, nil
		}
		if attempt == attempts-1 || !transient(err) {
			return result, err
		}
		if serr := sleep(ctx, backoff(p.BaseDelay, attempt)); serr != nil {
			return result, err
		}
	}
	return result, err
}

// backoff doubles the base delay per attempt and adds up to 10% jitter
func backoff(base time.Duration, attempt int) time.Duration {
	delay := base * time.Duration(1<<attempt)
	if delay <= 0 {
		return 0
	}
	jitter := time.Duration(rand.Int63n(int64(float64(delay)*jitterFraction) + 1))
	return delay + jitter
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
