package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/khqrpos/pos-gateway/internal/constant/model/db"
	"github.com/khqrpos/pos-gateway/internal/core"
	"github.com/khqrpos/pos-gateway/internal/port/output"
)

// GormSaleRepository is a secondary adapter that implements the
// SaleRepository output port on Postgres.
type GormSaleRepository struct {
	gormDB *gorm.DB
}

// NewGormSaleRepository creates a new GORM sale repository
func NewGormSaleRepository(gormDB *gorm.DB) output.SaleRepository {
	return &GormSaleRepository{gormDB: gormDB}
}

// toCore converts db.Sale to core.Sale
func toCore(s *db.Sale) *core.Sale {
	return &core.Sale{
		ID:          s.ID,
		Amount:      s.Amount,
		Currency:    core.Currency(s.Currency),
		Note:        s.Note,
		CashierID:   s.CashierID,
		BillNumber:  s.BillNumber,
		Fingerprint: s.Fingerprint,
		Status:      core.SaleStatus(s.Status),
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
		SettledAt:   s.SettledAt,
	}
}

// fromCore converts core.Sale to db.Sale
func fromCore(s *core.Sale) *db.Sale {
	return &db.Sale{
		ID:          s.ID,
		Amount:      s.Amount,
		Currency:    db.Currency(s.Currency),
		Note:        s.Note,
		CashierID:   s.CashierID,
		BillNumber:  s.BillNumber,
		Fingerprint: s.Fingerprint,
		Status:      db.SaleStatus(s.Status),
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
		SettledAt:   s.SettledAt,
	}
}

// Create persists a new sale
func (r *GormSaleRepository) Create(sale *core.Sale) error {
	dbSale := fromCore(sale)
	if err := r.gormDB.Create(dbSale).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", core.ErrDuplicateID, sale.ID)
		}
		return fmt.Errorf("failed to create sale: %w", err)
	}
	sale.CreatedAt = dbSale.CreatedAt
	return nil
}

// GetByID retrieves a sale by its ID
func (r *GormSaleRepository) GetByID(id uuid.UUID) (*core.Sale, error) {
	var dbSale db.Sale
	if err := r.gormDB.Where("id = ?", id).First(&dbSale).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return toCore(&dbSale), nil
}

// Transition atomically moves a sale between statuses. The row is locked
// with SELECT FOR UPDATE inside a transaction, so concurrent transition
// attempts on one sale are serialized by the database; losers observe the
// winner's status and get core.ErrStaleTransition with the current record.
func (r *GormSaleRepository) Transition(id uuid.UUID, from, to core.SaleStatus, settledAt *time.Time) (*core.Sale, error) {
	var current db.Sale
	err := r.gormDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return core.ErrNotFound
			}
			return fmt.Errorf("failed to lock sale: %w", err)
		}

		if current.Status != db.SaleStatus(from) {
			return core.ErrStaleTransition
		}

		current.Status = db.SaleStatus(to)
		if to == core.SaleStatusPaid {
			current.SettledAt = settledAt
		}

		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to update sale: %w", err)
		}
		return nil
	})
	if errors.Is(err, core.ErrStaleTransition) {
		return toCore(&current), err
	}
	if err != nil {
		return nil, err
	}
	return toCore(&current), nil
}

// FindExpiredPending returns pending sales whose deadline has passed
func (r *GormSaleRepository) FindExpiredPending(now time.Time, limit int) ([]*core.Sale, error) {
	var rows []db.Sale
	if err := r.gormDB.
		Where("status = ? AND expires_at < ?", db.SaleStatusPending, now).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query overdue sales: %w", err)
	}
	sales := make([]*core.Sale, 0, len(rows))
	for i := range rows {
		sales = append(sales, toCore(&rows[i]))
	}
	return sales, nil
}
