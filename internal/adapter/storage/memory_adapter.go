package storage

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/benefit-transfer/internal/core/domain"
	"github.com/rl1809/benefit-transfer/internal/port"
)

// MemoryAdapter keeps benefits in process memory. The whole compare-and-swap
// runs under one mutex, which makes it atomic across concurrent writers.
type MemoryAdapter struct {
	mu          sync.Mutex
	benefits    map[string]domain.Benefit
	idempotency map[string]struct{}
}

var (
	_ port.BenefitRepository     = (*MemoryAdapter)(nil)
	_ port.IdempotencyRepository = (*MemoryAdapter)(nil)
)

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		benefits:    make(map[string]domain.Benefit),
		idempotency: make(map[string]struct{}),
	}
}

func (m *MemoryAdapter) Get(_ context.Context, id string) (*domain.Benefit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.benefits[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &b, nil
}

func (m *MemoryAdapter) List(_ context.Context) ([]domain.Benefit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Benefit, 0, len(m.benefits))
	for _, b := range m.benefits {
		out = append(out, b)
	}
	sortBenefits(out)
	return out, nil
}

func (m *MemoryAdapter) Create(_ context.Context, b domain.Benefit) (*domain.Benefit, error) {
	now := time.Now().UTC()
	b.ID = uuid.New().String()
	b.Version = 0
	b.CreatedAt = now
	b.UpdatedAt = now

	m.mu.Lock()
	m.benefits[b.ID] = b
	m.mu.Unlock()

	return &b, nil
}

func (m *MemoryAdapter) CompareAndSwap(_ context.Context, benefits ...domain.Benefit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range benefits {
		current, ok := m.benefits[b.ID]
		if !ok {
			return port.ErrNotFound
		}
		if current.Version != b.Version {
			return port.ErrVersionConflict
		}
	}

	now := time.Now().UTC()
	for _, b := range benefits {
		current := m.benefits[b.ID]
		b.CreatedAt = current.CreatedAt
		b.UpdatedAt = now
		b.Version = current.Version + 1
		m.benefits[b.ID] = b
	}
	return nil
}

func (m *MemoryAdapter) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.benefits[id]; !ok {
		return port.ErrNotFound
	}
	delete(m.benefits, id)
	return nil
}

func (m *MemoryAdapter) SetIdempotency(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.idempotency[key]; ok {
		return false, nil
	}
	m.idempotency[key] = struct{}{}
	return true, nil
}

func (m *MemoryAdapter) ReleaseIdempotency(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.idempotency, key)
	m.mu.Unlock()
	return nil
}

// sortBenefits orders by creation time, then id.
func sortBenefits(benefits []domain.Benefit) {
	slices.SortFunc(benefits, func(a, b domain.Benefit) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
