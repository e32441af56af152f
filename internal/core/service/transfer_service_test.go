package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/benefit-transfer/internal/adapter/storage"
	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/port"
)

// flakyRepo injects version conflicts (or other errors) into the first
// commits and counts store calls.
type flakyRepo struct {
	port.BenefitRepository
	mu        sync.Mutex
	failFirst int
	failWith  error
	gets      int
	swaps     int
}

func (r *flakyRepo) Get(ctx context.Context, id string) (*domain.Benefit, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	return r.BenefitRepository.Get(ctx, id)
}

func (r *flakyRepo) CompareAndSwap(ctx context.Context, benefits ...domain.Benefit) error {
	r.mu.Lock()
	r.swaps++
	fail := r.swaps <= r.failFirst
	r.mu.Unlock()

	if fail {
		return r.failWith
	}
	return r.BenefitRepository.CompareAndSwap(ctx, benefits...)
}

type fixture struct {
	store *storage.MemoryAdapter
	svc   *TransferService
}

func newFixture(t *testing.T, repo port.BenefitRepository, store *storage.MemoryAdapter) *fixture {
	t.Helper()
	svc := NewTransferService(repo, store, DefaultRetryPolicy(), 100, zaptest.NewLogger(t))
	t.Cleanup(svc.Close)
	return &fixture{store: store, svc: svc}
}

func newMemoryFixture(t *testing.T) *fixture {
	store := storage.NewMemoryAdapter()
	return newFixture(t, store, store)
}

func (f *fixture) create(t *testing.T, value int64, active bool) domain.Benefit {
	t.Helper()
	v := decimal.NewFromInt(value)
	b, err := f.store.Create(context.Background(), domain.NewBenefit(domain.BenefitInput{Name: "b", Value: &v, Active: &active}))
	require.NoError(t, err)
	return *b
}

func (f *fixture) get(t *testing.T, id string) domain.Benefit {
	t.Helper()
	b, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return *b
}

func transfer(from, to string, amount int64) domain.TransferRequest {
	return domain.TransferRequest{FromID: from, ToID: to, Amount: decimal.NewFromInt(amount)}
}

func TestTransfer_Success(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 100, true)
	to := f.create(t, 50, true)

	require.NoError(t, f.svc.Transfer(context.Background(), transfer(from.ID, to.ID, 30)))

	gotFrom, gotTo := f.get(t, from.ID), f.get(t, to.ID)
	assert.True(t, gotFrom.Value.Equal(decimal.NewFromInt(70)))
	assert.True(t, gotTo.Value.Equal(decimal.NewFromInt(80)))
	assert.Equal(t, from.Version+1, gotFrom.Version)
	assert.Equal(t, to.Version+1, gotTo.Version)
	assert.True(t, gotFrom.Value.Add(gotTo.Value).Equal(decimal.NewFromInt(150)))
}

func TestTransfer_ExactBalanceLeavesZero(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 30, true)
	to := f.create(t, 0, true)

	require.NoError(t, f.svc.Transfer(context.Background(), transfer(from.ID, to.ID, 30)))
	assert.True(t, f.get(t, from.ID).Value.IsZero())
}

func TestTransfer_DecimalPrecision(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 1, true)
	to := f.create(t, 0, true)

	req := domain.TransferRequest{FromID: from.ID, ToID: to.ID, Amount: decimal.RequireFromString("0.1")}
	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.Transfer(context.Background(), req))
	}

	assert.True(t, f.get(t, from.ID).Value.Equal(decimal.RequireFromString("0.7")))
	assert.True(t, f.get(t, to.ID).Value.Equal(decimal.RequireFromString("0.3")))
}

func TestTransfer_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		fromVal  int64
		toActive bool
		amount   int64
		sameID   bool
		missing  bool
		want     error
	}{
		{name: "insufficient balance", fromVal: 20, toActive: true, amount: 30, want: ErrInsufficientBalance},
		{name: "inactive destination", fromVal: 100, toActive: false, amount: 30, want: ErrInactiveParticipant},
		{name: "same id", fromVal: 100, toActive: true, amount: 10, sameID: true, want: ErrInvalidRequest},
		{name: "negative amount", fromVal: 100, toActive: true, amount: -5, want: ErrInvalidRequest},
		{name: "zero amount", fromVal: 100, toActive: true, amount: 0, want: ErrInvalidRequest},
		{name: "missing destination", fromVal: 100, toActive: true, amount: 10, missing: true, want: ErrParticipantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMemoryFixture(t)
			from := f.create(t, tt.fromVal, true)
			to := f.create(t, 50, tt.toActive)

			toID := to.ID
			if tt.sameID {
				toID = from.ID
			}
			if tt.missing {
				toID = "does-not-exist"
			}

			err := f.svc.Transfer(context.Background(), transfer(from.ID, toID, tt.amount))
			assert.ErrorIs(t, err, tt.want)

			// nothing changed
			assert.Equal(t, from, f.get(t, from.ID))
			assert.Equal(t, to, f.get(t, to.ID))
		})
	}
}

func TestTransfer_InactiveSource(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 100, false)
	to := f.create(t, 0, true)

	err := f.svc.Transfer(context.Background(), transfer(from.ID, to.ID, 1))
	assert.ErrorIs(t, err, ErrInactiveParticipant)
}

func TestTransfer_MissingIDs(t *testing.T) {
	f := newMemoryFixture(t)

	assert.ErrorIs(t, f.svc.Transfer(context.Background(), transfer("", "x", 1)), ErrInvalidRequest)
	assert.ErrorIs(t, f.svc.Transfer(context.Background(), transfer("x", "", 1)), ErrInvalidRequest)
}

func TestTransfer_ValidationDoesNotTouchStore(t *testing.T) {
	store := storage.NewMemoryAdapter()
	repo := &flakyRepo{BenefitRepository: store}
	f := newFixture(t, repo, store)

	err := f.svc.Transfer(context.Background(), transfer("a", "a", 10))

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, repo.gets)
	assert.Zero(t, repo.swaps)
}

func TestTransfer_RetriesConflictWithFreshRead(t *testing.T) {
	store := storage.NewMemoryAdapter()
	repo := &flakyRepo{BenefitRepository: store, failFirst: 2, failWith: port.ErrVersionConflict}
	f := newFixture(t, repo, store)
	from := f.create(t, 100, true)
	to := f.create(t, 0, true)

	require.NoError(t, f.svc.Transfer(context.Background(), transfer(from.ID, to.ID, 40)))

	assert.Equal(t, 3, repo.swaps)
	assert.Equal(t, 6, repo.gets, "each attempt re-reads both records")
	assert.True(t, f.get(t, from.ID).Value.Equal(decimal.NewFromInt(60)))
}

func TestTransfer_ConflictRetriesExhausted(t *testing.T) {
	store := storage.NewMemoryAdapter()
	repo := &flakyRepo{BenefitRepository: store, failFirst: 10, failWith: port.ErrVersionConflict}
	f := newFixture(t, repo, store)
	from := f.create(t, 100, true)
	to := f.create(t, 0, true)

	err := f.svc.Transfer(context.Background(), transfer(from.ID, to.ID, 40))

	assert.ErrorIs(t, err, ErrConcurrentUpdateConflict)
	assert.Equal(t, DefaultMaxAttempts, repo.swaps)
	assert.Equal(t, from, f.get(t, from.ID))
	assert.Equal(t, to, f.get(t, to.ID))
}

func TestTransfer_StoreErrorNotRetried(t *testing.T) {
	store := storage.NewMemoryAdapter()
	boom := errors.New("connection refused")
	repo := &flakyRepo{BenefitRepository: store, failFirst: 1, failWith: boom}
	f := newFixture(t, repo, store)
	from := f.create(t, 100, true)
	to := f.create(t, 0, true)

	err := f.svc.Transfer(context.Background(), transfer(from.ID, to.ID, 40))

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, repo.swaps)
}

func TestTransfer_CancelledContext(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 100, true)
	to := f.create(t, 0, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.svc.Transfer(ctx, transfer(from.ID, to.ID, 10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, from, f.get(t, from.ID))
}

func TestTransfer_DuplicateIdempotencyKey(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 100, true)
	to := f.create(t, 0, true)

	req := transfer(from.ID, to.ID, 10)
	req.IdempotencyKey = "req-1"

	require.NoError(t, f.svc.Transfer(context.Background(), req))
	assert.ErrorIs(t, f.svc.Transfer(context.Background(), req), ErrDuplicateRequest)
	assert.True(t, f.get(t, from.ID).Value.Equal(decimal.NewFromInt(90)))
}

func TestTransfer_FailedRequestReleasesIdempotencyKey(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 5, true)
	to := f.create(t, 0, true)

	req := transfer(from.ID, to.ID, 10)
	req.IdempotencyKey = "req-2"

	assert.ErrorIs(t, f.svc.Transfer(context.Background(), req), ErrInsufficientBalance)
	// resubmission is evaluated again rather than treated as a duplicate
	assert.ErrorIs(t, f.svc.Transfer(context.Background(), req), ErrInsufficientBalance)
}

func TestTransfer_QueuesEvent(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 100, true)
	to := f.create(t, 0, true)

	require.NoError(t, f.svc.Transfer(context.Background(), transfer(from.ID, to.ID, 25)))

	event := <-f.svc.GetEventQueue()
	assert.NotEmpty(t, event.TransferID)
	assert.Equal(t, from.ID, event.FromID)
	assert.Equal(t, to.ID, event.ToID)
	assert.True(t, event.Amount.Equal(decimal.NewFromInt(25)))
	assert.False(t, event.OccurredAt.IsZero())
}

func TestTransfer_FullQueueDoesNotBlock(t *testing.T) {
	store := storage.NewMemoryAdapter()
	svc := NewTransferService(store, nil, DefaultRetryPolicy(), 0, nil)
	f := &fixture{store: store, svc: svc}
	from := f.create(t, 100, true)
	to := f.create(t, 0, true)

	require.NoError(t, svc.Transfer(context.Background(), transfer(from.ID, to.ID, 1)))
	svc.Close()
	require.NoError(t, svc.Transfer(context.Background(), transfer(from.ID, to.ID, 1)))
	svc.Close()
}

func TestTransfer_ConcurrentOverdraw(t *testing.T) {
	f := newMemoryFixture(t)
	from := f.create(t, 100, true)
	toA := f.create(t, 0, true)
	toB := f.create(t, 0, true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, to := range []string{toA.ID, toB.ID} {
		wg.Add(1)
		go func(i int, to string) {
			defer wg.Done()
			errs[i] = f.svc.Transfer(context.Background(), transfer(from.ID, to, 60))
		}(i, to)
	}
	wg.Wait()

	var committed int
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		assert.True(t, errors.Is(err, ErrInsufficientBalance) || errors.Is(err, ErrConcurrentUpdateConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, committed)
	assert.True(t, f.get(t, from.ID).Value.Equal(decimal.NewFromInt(40)))
}

func TestTransfer_ConcurrentConservation(t *testing.T) {
	f := newMemoryFixture(t)
	ids := make([]string, 4)
	for i := range ids {
		ids[i] = f.create(t, 1000, true).ID
	}

	var committed, conflicted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := ids[i%4], ids[(i+1+i/4)%4]
			if from == to {
				to = ids[(i+2)%4]
			}
			err := f.svc.Transfer(context.Background(), transfer(from, to, int64(1+i%7)))
			switch {
			case err == nil:
				committed.Add(1)
			case errors.Is(err, ErrConcurrentUpdateConflict), errors.Is(err, ErrInsufficientBalance):
				conflicted.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	total := decimal.Zero
	var versions int64
	for _, id := range ids {
		b := f.get(t, id)
		assert.False(t, b.Value.IsNegative(), fmt.Sprintf("%s went negative", id))
		total = total.Add(b.Value)
		versions += b.Version
	}

	assert.True(t, total.Equal(decimal.NewFromInt(4000)), "total=%s", total)
	// every committed transfer bumps exactly two versions
	assert.Equal(t, int64(committed.Load())*2, versions)
	assert.Equal(t, int32(200), committed.Load()+conflicted.Load())
}

func TestTransfer_SubCentAmountRejectedByScaledStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	columns := []string{"id", "name", "description", "value", "active", "version", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM benefits WHERE id = ?")).WithArgs("a").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("a", "from", "", "100.00", true, int64(0), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM benefits WHERE id = ?")).WithArgs("b").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("b", "to", "", "50.00", true, int64(0), now, now))

	svc := NewTransferService(storage.NewMySQLAdapter(db), nil, DefaultRetryPolicy(), 1, zaptest.NewLogger(t))
	defer svc.Close()

	err = svc.Transfer(context.Background(), domain.TransferRequest{FromID: "a", ToID: "b", Amount: decimal.RequireFromString("0.005")})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.ErrorIs(t, err, port.ErrPrecision)

	// one attempt, no UPDATE issued
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, svc.GetEventQueue())
}
