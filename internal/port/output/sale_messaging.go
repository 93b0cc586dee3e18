package output

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/khqrpos/pos-gateway/internal/core"
)

// SettledEvent is published whenever a sale reaches PAID.
type SettledEvent struct {
	SaleID      uuid.UUID       `json:"sale_id"`
	Fingerprint string          `json:"fingerprint"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    core.Currency   `json:"currency"`
	SettledAt   time.Time       `json:"settled_at"`
}

// SaleMessaging is an output port (secondary port) for sale event fan-out.
// Secondary adapters (RabbitMQ implementations) will implement this.
type SaleMessaging interface {
	// PublishSettled publishes a sale-settled event for downstream
	// consumers (receipts, accounting)
	PublishSettled(event SettledEvent) error
	// Close closes the messaging connection
	Close() error
}
