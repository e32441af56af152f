package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/metrics"
	"github.com/rl1809/benefit-transfer/internal/port"
)

const idempotencyKeyPrefix = "transfer:"

// TransferExecutor moves value between two benefits.
type TransferExecutor interface {
	Transfer(ctx context.Context, req domain.TransferRequest) error
}

type TransferService struct {
	repo        port.BenefitRepository
	idempotency port.IdempotencyRepository
	policy      RetryPolicy
	logger      *zap.Logger

	mu         sync.RWMutex
	closed     bool
	eventQueue chan domain.TransferCompleted
}

var _ TransferExecutor = (*TransferService)(nil)

// NewTransferService wires the engine. idempotency may be nil, in which case
// idempotency keys are ignored.
func NewTransferService(repo port.BenefitRepository, idempotency port.IdempotencyRepository, policy RetryPolicy, queueSize int, logger *zap.Logger) *TransferService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferService{
		repo:        repo,
		idempotency: idempotency,
		policy:      policy,
		logger:      logger,
		eventQueue:  make(chan domain.TransferCompleted, queueSize),
	}
}

// ValidateTransfer rejects malformed requests without touching storage.
func ValidateTransfer(req domain.TransferRequest) error {
	if req.FromID == "" || req.ToID == "" {
		return fmt.Errorf("%w: both ids are required", ErrInvalidRequest)
	}
	if req.FromID == req.ToID {
		return fmt.Errorf("%w: from and to must differ", ErrInvalidRequest)
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}
	return nil
}

// Transfer debits req.FromID and credits req.ToID as one unit. Version
// conflicts at commit are retried according to the policy; any other
// failure is returned immediately and leaves both records untouched.
func (s *TransferService) Transfer(ctx context.Context, req domain.TransferRequest) error {
	attempts, err := s.transfer(ctx, req)
	metrics.RecordTransfer(Outcome(err), attempts)
	return err
}

func (s *TransferService) transfer(ctx context.Context, req domain.TransferRequest) (int, error) {
	if err := ValidateTransfer(req); err != nil {
		return 0, err
	}

	log := s.logger.With(
		zap.String("from", req.FromID),
		zap.String("to", req.ToID),
		zap.Stringer("amount", req.Amount),
	)

	if req.IdempotencyKey != "" && s.idempotency != nil {
		ok, err := s.idempotency.SetIdempotency(ctx, idempotencyKeyPrefix+req.IdempotencyKey)
		if err != nil {
			return 0, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return 0, ErrDuplicateRequest
		}
	}

	log.Debug("transfer started")

	attempts, err := s.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		err := s.attempt(ctx, req)
		if errors.Is(err, port.ErrVersionConflict) {
			metrics.RecordConflict()
			log.Warn("transfer version conflict", zap.Int("attempt", attempt))
		}
		return err
	})
	if err != nil {
		s.releaseIdempotency(ctx, req.IdempotencyKey)
		log.Info("transfer rejected", zap.Int("attempts", attempts), zap.Error(err))
		return attempts, err
	}

	log.Info("transfer committed", zap.Int("attempts", attempts))

	s.enqueue(domain.TransferCompleted{
		TransferID: uuid.New().String(),
		FromID:     req.FromID,
		ToID:       req.ToID,
		Amount:     req.Amount,
		OccurredAt: time.Now().UTC(),
	})

	return attempts, nil
}

// attempt is one read-validate-commit cycle. Nothing is written unless the
// final CompareAndSwap succeeds.
func (s *TransferService) attempt(ctx context.Context, req domain.TransferRequest) error {
	from, err := s.load(ctx, req.FromID)
	if err != nil {
		return err
	}
	to, err := s.load(ctx, req.ToID)
	if err != nil {
		return err
	}

	if !from.IsActive() || !to.IsActive() {
		return fmt.Errorf("%w: both benefits must be active", ErrInactiveParticipant)
	}
	if from.Value.LessThan(req.Amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.ID, from.Value, req.Amount)
	}

	from.Value = from.Value.Sub(req.Amount)
	to.Value = to.Value.Add(req.Amount)

	if err := s.repo.CompareAndSwap(ctx, *from, *to); err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return fmt.Errorf("%w: removed during transfer", ErrParticipantNotFound)
		}
		if errors.Is(err, port.ErrVersionConflict) {
			return err
		}
		if errors.Is(err, port.ErrPrecision) {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

func (s *TransferService) load(ctx context.Context, id string) (*domain.Benefit, error) {
	b, err := s.repo.Get(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get benefit %s: %w", id, err)
	}
	return b, nil
}

func (s *TransferService) releaseIdempotency(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKeyPrefix+key); err != nil {
		s.logger.Error("release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// enqueue hands the event to the publisher workers without blocking the
// caller; a full or closed queue drops the event.
func (s *TransferService) enqueue(event domain.TransferCompleted) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		metrics.RecordEvent("dropped")
		s.logger.Warn("event queue closed, dropping event", zap.String("transfer_id", event.TransferID))
		return
	}

	select {
	case s.eventQueue <- event:
	default:
		metrics.RecordEvent("dropped")
		s.logger.Warn("event queue full, dropping event", zap.String("transfer_id", event.TransferID))
	}
}

func (s *TransferService) GetEventQueue() <-chan domain.TransferCompleted {
	return s.eventQueue
}

func (s *TransferService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.eventQueue)
}
