// Package resilience wraps flaky store reads with bounded retries and a
// circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds Retry. It maps onto an exponential backoff that
// doubles from BaseDelay up to MaxDelay, without jitter.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig returns three attempts with 200ms..2s exponential delays.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

func (c RetryConfig) attempts() int {
	return max(c.MaxAttempts, 1)
}

// policy builds the backoff for one Retry call. It stops after
// MaxAttempts-1 retries or when ctx is done.
func (c RetryConfig) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.BaseDelay
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = 100 * time.Millisecond
	}
	exp.MaxInterval = c.MaxDelay
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = 5 * time.Second
	}
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.attempts()-1)), ctx)
}

// Permanent wraps err so Retry returns it immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Retry calls fn until it succeeds, returns a Permanent error, the attempts
// run out, or ctx is done. The last error is returned.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	var (
		calls int
		last  error
	)
	err := backoff.Retry(func() error {
		calls++
		last = fn(ctx)
		return last
	}, cfg.policy(ctx))
	if err == nil {
		return nil
	}

	var perm *backoff.PermanentError
	if errors.As(last, &perm) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("retry aborted after %d attempts: %w", calls, errors.Join(last, ctxErr))
	}
	return fmt.Errorf("giving up after %d attempts: %w", calls, err)
}
