package database

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khqrpos/pos-gateway/internal/core"
	"github.com/khqrpos/pos-gateway/internal/port/output"
)

// MemorySaleRepository is an in-memory SaleRepository for demo and test
// runs. A single mutex guards the map; Transition performs its
// compare-and-swap under that lock, which gives the same at-most-once
// guarantee the Postgres adapter gets from row locking.
type MemorySaleRepository struct {
	mu    sync.Mutex
	sales map[uuid.UUID]*core.Sale
}

// NewMemorySaleRepository instantiates an empty in-memory repository
func NewMemorySaleRepository() *MemorySaleRepository {
	return &MemorySaleRepository{
		sales: map[uuid.UUID]*core.Sale{},
	}
}

var _ output.SaleRepository = (*MemorySaleRepository)(nil)

// Create persists a new sale
func (r *MemorySaleRepository) Create(sale *core.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sales[sale.ID]; exists {
		return core.ErrDuplicateID
	}
	cp := *sale
	r.sales[sale.ID] = &cp
	return nil
}

// GetByID retrieves a sale by its ID
func (r *MemorySaleRepository) GetByID(id uuid.UUID) (*core.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sale, ok := r.sales[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *sale
	return &cp, nil
}

// Transition atomically moves a sale between statuses
func (r *MemorySaleRepository) Transition(id uuid.UUID, from, to core.SaleStatus, settledAt *time.Time) (*core.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sale, ok := r.sales[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	if sale.Status != from {
		cp := *sale
		return &cp, core.ErrStaleTransition
	}
	sale.Status = to
	if to == core.SaleStatusPaid {
		sale.SettledAt = settledAt
	}
	cp := *sale
	return &cp, nil
}

// FindExpiredPending returns pending sales whose deadline has passed
func (r *MemorySaleRepository) FindExpiredPending(now time.Time, limit int) ([]*core.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var overdue []*core.Sale
	for _, sale := range r.sales {
		if len(overdue) == limit {
			break
		}
		if sale.IsExpiredBy(now) {
			cp := *sale
			overdue = append(overdue, &cp)
		}
	}
	return overdue, nil
}
