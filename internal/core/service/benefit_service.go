package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/port"
)

// BenefitService owns the record lifecycle: creation defaults, single-record
// updates under the same version check as transfers, and deletion.
type BenefitService struct {
	repo   port.BenefitRepository
	policy RetryPolicy
	logger *zap.Logger
}

func NewBenefitService(repo port.BenefitRepository, policy RetryPolicy, logger *zap.Logger) *BenefitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BenefitService{repo: repo, policy: policy, logger: logger}
}

func validateBenefit(b domain.Benefit) error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	if b.Value.IsNegative() {
		return fmt.Errorf("%w: value must not be negative", ErrInvalidRequest)
	}
	return nil
}

func (s *BenefitService) Create(ctx context.Context, in domain.BenefitInput) (*domain.Benefit, error) {
	b := domain.NewBenefit(in)
	if err := validateBenefit(b); err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, b)
	if errors.Is(err, port.ErrPrecision) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err != nil {
		return nil, fmt.Errorf("create benefit: %w", err)
	}

	s.logger.Info("benefit created", zap.String("id", created.ID), zap.Stringer("value", created.Value))
	return created, nil
}

func (s *BenefitService) Get(ctx context.Context, id string) (*domain.Benefit, error) {
	b, err := s.repo.Get(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get benefit %s: %w", id, err)
	}
	return b, nil
}

func (s *BenefitService) List(ctx context.Context) ([]domain.Benefit, error) {
	benefits, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list benefits: %w", err)
	}
	return benefits, nil
}

// Update reads the current record, applies in and writes it back carrying
// the observed version. A concurrent transfer or update on the same record
// makes the write conflict, and the cycle is rerun on fresh state.
func (s *BenefitService) Update(ctx context.Context, id string, in domain.BenefitInput) (*domain.Benefit, error) {
	var updated domain.Benefit

	_, err := s.policy.Do(ctx, func(ctx context.Context, _ int) error {
		current, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		next := current.Apply(in)
		if err := validateBenefit(next); err != nil {
			return err
		}

		if err := s.repo.CompareAndSwap(ctx, next); err != nil {
			if errors.Is(err, port.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
			}
			if errors.Is(err, port.ErrVersionConflict) {
				return err
			}
			if errors.Is(err, port.ErrPrecision) {
				return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
			return fmt.Errorf("update benefit %s: %w", id, err)
		}

		next.Version++
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	// the store stamps updated_at itself
	if stored, err := s.repo.Get(ctx, id); err == nil && stored.Version == updated.Version {
		updated = *stored
	} else if err != nil {
		s.logger.Warn("re-read after update", zap.String("id", id), zap.Error(err))
	}

	s.logger.Info("benefit updated", zap.String("id", id), zap.Int64("version", updated.Version))
	return &updated, nil
}

func (s *BenefitService) Delete(ctx context.Context, id string) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, port.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrParticipantNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete benefit %s: %w", id, err)
	}

	s.logger.Info("benefit deleted", zap.String("id", id))
	return nil
}
