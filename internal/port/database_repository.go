package port

import (
	"context"
	"errors"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
)

var (
	ErrNotFound        = errors.New("benefit not found")
	ErrVersionConflict = errors.New("version conflict")
	// ErrPrecision means a value has more decimal places than the store keeps.
	ErrPrecision = errors.New("value exceeds store precision")
)

type BenefitRepository interface {
	// Get returns a snapshot of the benefit (value and version) or ErrNotFound
	Get(ctx context.Context, id string) (*domain.Benefit, error)

	// List returns every stored benefit
	List(ctx context.Context) ([]domain.Benefit, error)

	// Create assigns an ID, stores the benefit at version 0 and returns it
	Create(ctx context.Context, benefit domain.Benefit) (*domain.Benefit, error)

	// CompareAndSwap writes all records as one unit. Each record's Version must
	// equal the stored version, otherwise nothing is written and ErrVersionConflict
	// is returned. Stored versions are incremented by one. A store that cannot
	// hold a value exactly returns ErrPrecision and writes nothing.
	CompareAndSwap(ctx context.Context, benefits ...domain.Benefit) error

	// Delete removes the benefit or returns ErrNotFound
	Delete(ctx context.Context, id string) error
}
