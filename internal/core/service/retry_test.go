package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rl1809/benefit-transfer/internal/port"
)

func TestRetryPolicy_Do(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name         string
		maxAttempts  int
		results      []error
		wantAttempts int
		wantErr      error
	}{
		{name: "first attempt succeeds", maxAttempts: 3, results: []error{nil}, wantAttempts: 1},
		{name: "conflict then success", maxAttempts: 3, results: []error{port.ErrVersionConflict, nil}, wantAttempts: 2},
		{name: "terminal error is not retried", maxAttempts: 3, results: []error{boom}, wantAttempts: 1, wantErr: boom},
		{name: "business error is not retried", maxAttempts: 3, results: []error{ErrInsufficientBalance}, wantAttempts: 1, wantErr: ErrInsufficientBalance},
		{
			name:         "bound exhausted",
			maxAttempts:  3,
			results:      []error{port.ErrVersionConflict, port.ErrVersionConflict, port.ErrVersionConflict},
			wantAttempts: 3,
			wantErr:      ErrConcurrentUpdateConflict,
		},
		{name: "non-positive bound runs once", maxAttempts: 0, results: []error{port.ErrVersionConflict}, wantAttempts: 1, wantErr: ErrConcurrentUpdateConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			attempts, err := RetryPolicy{MaxAttempts: tt.maxAttempts}.Do(context.Background(), func(_ context.Context, attempt int) error {
				calls++
				assert.Equal(t, calls, attempt)
				return tt.results[calls-1]
			})

			assert.Equal(t, tt.wantAttempts, attempts)
			assert.Equal(t, tt.wantAttempts, calls)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestRetryPolicy_ExhaustedKeepsConflictCause(t *testing.T) {
	_, err := RetryPolicy{MaxAttempts: 2}.Do(context.Background(), func(context.Context, int) error {
		return port.ErrVersionConflict
	})

	assert.ErrorIs(t, err, ErrConcurrentUpdateConflict)
	assert.ErrorIs(t, err, port.ErrVersionConflict)
}

func TestRetryPolicy_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts, err := DefaultRetryPolicy().Do(ctx, func(context.Context, int) error {
		cancel()
		return port.ErrVersionConflict
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "committed", Outcome(nil))
	assert.Equal(t, "insufficient_balance", Outcome(ErrInsufficientBalance))
	assert.Equal(t, "conflict", Outcome(ErrConcurrentUpdateConflict))
	assert.Equal(t, "error", Outcome(errors.New("x")))
}
