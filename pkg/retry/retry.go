// Package retry wraps cenkalti/backoff with the bounded fixed-delay policy
// used for device wire pushes: up to N attempts, constant inter-attempt
// delay, retrying only errors the caller marks as retryable.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config parameterizes one retry loop.
type Config struct {
	MaxAttempts int              // total attempts, including the first
	Delay       time.Duration    // fixed delay between attempts
	Retryable   func(error) bool // nil means every error is retryable
}

// Do runs op until it succeeds, exhausts MaxAttempts, hits a non-retryable
// error, or ctx is cancelled. The returned error is the last one from op.
func Do(ctx context.Context, cfg Config, op func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Delay), uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}
