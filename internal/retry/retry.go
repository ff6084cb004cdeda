// Package retry wraps an operation that may fail transiently in a bounded
// exponential-backoff loop. Whether a failure is worth retrying is decided by
// an error classifier, never by matching message text.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrMaxRetries marks the terminal failure after the retry budget is spent.
// It is distinct from a non-retryable failure, which propagates unchanged.
var ErrMaxRetries = errors.New("max retries reached")

const DefaultMaxRetries = 3

// Config controls a retry loop.
type Config struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// operation runs at most MaxRetries+1 times. Non-positive values use
	// DefaultMaxRetries.
	MaxRetries int

	// Retryable reports whether an error is transient. A nil classifier
	// retries nothing, making Do equivalent to a single call.
	Retryable func(error) bool

	// Sleep overrides how backoff waits are performed (useful for tests).
	Sleep func(context.Context, time.Duration) error

	// OnRetry is invoked before each backoff wait with the 1-based retry
	// attempt and the error that triggered it.
	OnRetry func(attempt int, err error)
}

// Do runs op, retrying transient failures with exponential backoff
// (1s, 2s, 4s for the default budget). A success resets nothing to carry:
// the result is returned immediately. Context cancellation aborts the
// backoff wait and returns the context error.
func Do[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var zero T

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	retryable := cfg.Retryable
	if retryable == nil {
		retryable = func(error) bool { return false }
	}

	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !retryable(err) {
			return zero, err
		}

		if attempt == maxRetries {
			break
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, err)
		}

		if err := sleep(ctx, backoff(attempt)); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
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
