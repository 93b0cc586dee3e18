package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SaleStatus represents the status of a sale
type SaleStatus string

const (
	SaleStatusPending   SaleStatus = "PENDING"
	SaleStatusPaid      SaleStatus = "PAID"
	SaleStatusExpired   SaleStatus = "EXPIRED"
	SaleStatusFailed    SaleStatus = "FAILED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

// Currency represents supported currencies
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyKHR Currency = "KHR"
)

// Sale represents a sale entity in the database. Rows are never deleted;
// terminal sales are retained for audit.
type Sale struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Currency    Currency        `gorm:"type:varchar(3);not null" json:"currency"`
	Note        string          `gorm:"type:varchar(255)" json:"note"`
	CashierID   string          `gorm:"type:varchar(64)" json:"cashier_id"`
	BillNumber  string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"bill_number"`
	Fingerprint string          `gorm:"type:varchar(32);not null;index" json:"fingerprint"`
	Status      SaleStatus      `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	ExpiresAt   time.Time       `gorm:"not null;index" json:"expires_at"`
	SettledAt   *time.Time      `json:"settled_at"`
}

// TableName specifies the table name for GORM
func (Sale) TableName() string {
	return "sales"
}

// BeforeCreate is a GORM hook that runs before creating a record
func (s *Sale) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return nil
}

// IsPending checks if the sale is still awaiting settlement
func (s *Sale) IsPending() bool {
	return s.Status == SaleStatusPending
}

// IsTerminal checks if the sale is in a terminal state
func (s *Sale) IsTerminal() bool {
	return s.Status != SaleStatusPending
}
