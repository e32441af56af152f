package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Benefit struct {
	ID          string
	Name        string
	Description string
	Value       decimal.Decimal
	Active      bool
	Version     int64 // optimistic locking
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive reports whether the benefit may take part in a transfer.
func (b Benefit) IsActive() bool {
	return b.Active
}

// BenefitInput carries caller-supplied fields. Nil Value and Active are
// filled with defaults by NewBenefit.
type BenefitInput struct {
	Name        string
	Description string
	Value       *decimal.Decimal
	Active      *bool
}

// NewBenefit applies creation defaults: zero value, active.
func NewBenefit(in BenefitInput) Benefit {
	b := Benefit{
		Name:        in.Name,
		Description: in.Description,
		Value:       decimal.Zero,
		Active:      true,
	}
	if in.Value != nil {
		b.Value = *in.Value
	}
	if in.Active != nil {
		b.Active = *in.Active
	}
	return b
}

// Apply overwrites the mutable fields of b with in. Absent fields keep
// their current value.
func (b Benefit) Apply(in BenefitInput) Benefit {
	b.Name = in.Name
	b.Description = in.Description
	if in.Value != nil {
		b.Value = *in.Value
	}
	if in.Active != nil {
		b.Active = *in.Active
	}
	return b
}
