package database

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khqrpos/pos-gateway/internal/core"
)

func newPendingSale() *core.Sale {
	now := time.Now()
	return &core.Sale{
		ID:          uuid.New(),
		Amount:      decimal.NewFromInt(10),
		Currency:    core.CurrencyUSD,
		BillNumber:  "POS-1-" + uuid.NewString()[:8],
		Fingerprint: uuid.NewString(),
		Status:      core.SaleStatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(5 * time.Minute),
	}
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := NewMemorySaleRepository()
	sale := newPendingSale()

	require.NoError(t, repo.Create(sale))

	got, err := repo.GetByID(sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ID, got.ID)
	assert.Equal(t, core.SaleStatusPending, got.Status)

	assert.ErrorIs(t, repo.Create(sale), core.ErrDuplicateID)

	_, err = repo.GetByID(uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemorySaleRepository()
	sale := newPendingSale()
	require.NoError(t, repo.Create(sale))

	got, err := repo.GetByID(sale.ID)
	require.NoError(t, err)
	got.Status = core.SaleStatusPaid

	again, err := repo.GetByID(sale.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPending, again.Status)
}

func TestMemoryRepository_Transition(t *testing.T) {
	repo := NewMemorySaleRepository()
	sale := newPendingSale()
	require.NoError(t, repo.Create(sale))

	settledAt := time.Now()
	updated, err := repo.Transition(sale.ID, core.SaleStatusPending, core.SaleStatusPaid, &settledAt)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPaid, updated.Status)
	require.NotNil(t, updated.SettledAt)

	// A second attempt loses the compare-and-swap but still sees the
	// current record.
	current, err := repo.Transition(sale.ID, core.SaleStatusPending, core.SaleStatusExpired, nil)
	assert.ErrorIs(t, err, core.ErrStaleTransition)
	require.NotNil(t, current)
	assert.Equal(t, core.SaleStatusPaid, current.Status)

	_, err = repo.Transition(uuid.New(), core.SaleStatusPending, core.SaleStatusPaid, &settledAt)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMemoryRepository_TransitionDoesNotSetSettledAtForNonPaid(t *testing.T) {
	repo := NewMemorySaleRepository()
	sale := newPendingSale()
	require.NoError(t, repo.Create(sale))

	updated, err := repo.Transition(sale.ID, core.SaleStatusPending, core.SaleStatusExpired, nil)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusExpired, updated.Status)
	assert.Nil(t, updated.SettledAt)
}

func TestMemoryRepository_ConcurrentTransitions(t *testing.T) {
	repo := NewMemorySaleRepository()
	sale := newPendingSale()
	require.NoError(t, repo.Create(sale))

	const attempts = 32
	var wg sync.WaitGroup
	var wins, losses int64
	var mu sync.Mutex

	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			defer wg.Done()
			settledAt := time.Now()
			_, err := repo.Transition(sale.ID, core.SaleStatusPending, core.SaleStatusPaid, &settledAt)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else {
				losses++
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, attempts-1, losses)
}

func TestMemoryRepository_FindExpiredPending(t *testing.T) {
	repo := NewMemorySaleRepository()
	now := time.Now()

	overdue := newPendingSale()
	overdue.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, repo.Create(overdue))

	fresh := newPendingSale()
	require.NoError(t, repo.Create(fresh))

	found, err := repo.FindExpiredPending(now, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, overdue.ID, found[0].ID)
}
