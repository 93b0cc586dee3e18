package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/database"
	"github.com/khqrpos/pos-gateway/internal/core"
)

func seedSale(t *testing.T, repo *database.MemorySaleRepository, status core.SaleStatus, expiresAt time.Time) uuid.UUID {
	t.Helper()
	sale := &core.Sale{
		ID:          uuid.New(),
		Amount:      decimal.NewFromInt(1),
		Currency:    core.CurrencyUSD,
		BillNumber:  "POS-1-" + uuid.NewString()[:8],
		Fingerprint: uuid.NewString(),
		Status:      status,
		CreatedAt:   expiresAt.Add(-5 * time.Minute),
		ExpiresAt:   expiresAt,
	}
	require.NoError(t, repo.Create(sale))
	return sale.ID
}

func TestSweepOnce(t *testing.T) {
	repo := database.NewMemorySaleRepository()
	now := time.Now()

	overdue := seedSale(t, repo, core.SaleStatusPending, now.Add(-time.Minute))
	fresh := seedSale(t, repo, core.SaleStatusPending, now.Add(time.Hour))
	paid := seedSale(t, repo, core.SaleStatusPaid, now.Add(-time.Minute))

	sweeper := NewExpirySweeper(repo, time.Minute, zaptest.NewLogger(t))
	assert.Equal(t, 1, sweeper.SweepOnce())

	for id, want := range map[uuid.UUID]core.SaleStatus{
		overdue: core.SaleStatusExpired,
		fresh:   core.SaleStatusPending,
		paid:    core.SaleStatusPaid,
	} {
		sale, err := repo.GetByID(id)
		require.NoError(t, err)
		assert.Equal(t, want, sale.Status)
	}

	// A second sweep finds nothing left to do.
	assert.Zero(t, sweeper.SweepOnce())
}
