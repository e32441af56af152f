package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rl1809/benefit-transfer/internal/port"
)

const DefaultMaxAttempts = 3

// RetryPolicy bounds how many times a read-validate-commit cycle is rerun
// after a version conflict. There is no backoff between attempts.
type RetryPolicy struct {
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: DefaultMaxAttempts}
}

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it returns something other than port.ErrVersionConflict
// or the bound is exhausted. fn must re-read all state it depends on.
// It returns the number of attempts made.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) (int, error) {
	var lastErr error
	limit := p.maxAttempts()

	for attempt := 1; attempt <= limit; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn(ctx, attempt)
		if !errors.Is(lastErr, port.ErrVersionConflict) {
			return attempt, lastErr
		}
	}

	return limit, fmt.Errorf("%w: gave up after %d attempts: %w", ErrConcurrentUpdateConflict, limit, lastErr)
}
