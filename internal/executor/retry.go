package executor

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy bounds retry behaviour for order submission.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy matches the venue's tolerance for resubmission.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// backoff returns the delay before the given retry, doubling per attempt and
// capped at MaxBackoff. attempt is zero-based.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseBackoff << attempt
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// run invokes fn up to MaxAttempts times. fn reports via retryable whether a
// failure is worth another attempt; a non-retryable failure returns
// immediately. Context cancellation wins over any pending backoff.
func (p RetryPolicy) run(ctx context.Context, fn func(attempt int) (retryable bool, err error)) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("executor: retry wait: %w", ctx.Err())
			case <-time.After(p.backoff(attempt - 1)):
			}
		}

		retryable, err := fn(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return fmt.Errorf("executor: %d attempts exhausted: %w", attempts, lastErr)
}
