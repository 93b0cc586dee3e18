package output

import (
	"time"

	"github.com/google/uuid"

	"github.com/khqrpos/pos-gateway/internal/core"
)

// SaleRepository is an output port (secondary port) for sale data access.
// Secondary adapters (database implementations) will implement this.
type SaleRepository interface {
	// Create persists a new sale. Returns core.ErrDuplicateID if a sale
	// with the same ID already exists.
	Create(sale *core.Sale) error

	// GetByID retrieves a sale by its ID. Returns core.ErrNotFound when
	// the ID is unknown.
	GetByID(id uuid.UUID) (*core.Sale, error)

	// Transition atomically moves a sale from one status to another:
	// a compare-and-swap that succeeds only if the current status equals
	// from. On a lost race it returns the current record together with
	// core.ErrStaleTransition and changes nothing. settledAt is recorded
	// only when to is PAID.
	Transition(id uuid.UUID, from, to core.SaleStatus, settledAt *time.Time) (*core.Sale, error)

	// FindExpiredPending returns up to limit sales that are still PENDING
	// but whose expiry deadline has passed at the given instant.
	FindExpiredPending(now time.Time, limit int) ([]*core.Sale, error)
}
