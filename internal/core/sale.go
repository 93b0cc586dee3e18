package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

// Sale represents a single point-of-sale payment request tracked through
// its lifecycle. Amount, currency, bill number and fingerprint are fixed
// at creation; only Status and SettledAt change afterwards.
type Sale struct {
	ID          uuid.UUID
	Amount      decimal.Decimal
	Currency    Currency
	Note        string
	CashierID   string
	BillNumber  string
	Fingerprint string
	Status      SaleStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	SettledAt   *time.Time
}

// IsPending checks if the sale is still awaiting settlement
func (s *Sale) IsPending() bool {
	return s.Status == SaleStatusPending
}

// IsTerminal checks if the sale has reached a final state
func (s *Sale) IsTerminal() bool {
	return s.Status != SaleStatusPending
}

// IsExpiredBy reports whether a still-pending sale has passed its
// expiry deadline at the given instant.
func (s *Sale) IsExpiredBy(now time.Time) bool {
	return s.IsPending() && now.After(s.ExpiresAt)
}

// ValidCurrency checks membership in the supported currency set
func ValidCurrency(c Currency) bool {
	return c == CurrencyUSD || c == CurrencyKHR
}

// CanTransition reports whether moving from one status to another is
// allowed. PENDING is the only non-terminal state; everything it moves
// to is terminal, so the graph is forward-only by construction.
func CanTransition(from, to SaleStatus) bool {
	if from != SaleStatusPending {
		return false
	}
	switch to {
	case SaleStatusPaid, SaleStatusExpired, SaleStatusFailed, SaleStatusCancelled:
		return true
	}
	return false
}
