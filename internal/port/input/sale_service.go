package input

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khqrpos/pos-gateway/internal/core"
)

// SaleService is an input port (primary port) for sale lifecycle operations.
// Primary adapters (HTTP handlers) will use this.
type SaleService interface {
	// CreateSale registers a new sale and returns its QR payment material
	CreateSale(req CreateSaleRequest) (*SaleCreated, error)

	// GetSale retrieves the full sale record, applying lazy expiry
	GetSale(id uuid.UUID) (*SaleDetail, error)

	// CheckStatus reports the sale status, consulting the settlement
	// oracle for sales that are still pending
	CheckStatus(id uuid.UUID) (*SaleStatus, error)

	// ConfirmPaidManually forces a pending sale to PAID without consulting
	// the oracle. Demo/test flows only; never a production settlement path.
	ConfirmPaidManually(id uuid.UUID) (*SaleStatus, error)

	// CancelSale moves a pending sale to CANCELLED
	CancelSale(id uuid.UUID) (*SaleStatus, error)
}

// CreateSaleRequest represents the request to create a sale
type CreateSaleRequest struct {
	Amount    decimal.Decimal
	Currency  core.Currency
	Note      string
	CashierID string
}

// SaleCreated is returned from CreateSale; QRPNGBase64 is the rendered
// QR symbol, forwarded opaquely from the renderer.
type SaleCreated struct {
	ID          uuid.UUID
	Amount      decimal.Decimal
	Currency    core.Currency
	BillNumber  string
	Fingerprint string
	Status      core.SaleStatus
	QRPNGBase64 string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// SaleDetail is the full record view
type SaleDetail struct {
	ID          uuid.UUID
	Amount      decimal.Decimal
	Currency    core.Currency
	Note        string
	CashierID   string
	BillNumber  string
	Fingerprint string
	Status      core.SaleStatus
	CreatedAt   time.Time
	ExpiresAt   time.Time
	SettledAt   *time.Time
}

// SaleStatus is the polling view
type SaleStatus struct {
	ID          uuid.UUID
	Status      core.SaleStatus
	Fingerprint string
}
