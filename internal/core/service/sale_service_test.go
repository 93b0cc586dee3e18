package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/khqrpos/pos-gateway/internal/adapter/secondary/database"
	"github.com/khqrpos/pos-gateway/internal/core"
	"github.com/khqrpos/pos-gateway/internal/core/khqr"
	"github.com/khqrpos/pos-gateway/internal/port/input"
	"github.com/khqrpos/pos-gateway/internal/port/output"
)

// fakeOracle returns a scripted verdict and counts how often it is asked.
type fakeOracle struct {
	mu      sync.Mutex
	verdict output.Verdict
	enabled bool
	calls   int64
}

func (o *fakeOracle) CheckSettlement(string) output.Verdict {
	atomic.AddInt64(&o.calls, 1)
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.verdict
}

func (o *fakeOracle) Enabled() bool { return o.enabled }

func (o *fakeOracle) set(v output.Verdict) {
	o.mu.Lock()
	o.verdict = v
	o.mu.Unlock()
}

// fakeMessaging records published settled events.
type fakeMessaging struct {
	mu     sync.Mutex
	events []output.SettledEvent
}

func (m *fakeMessaging) PublishSettled(e output.SettledEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *fakeMessaging) Close() error { return nil }

func (m *fakeMessaging) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// fakeRenderer avoids pulling image encoding into state-machine tests.
type fakeRenderer struct{}

func (fakeRenderer) RenderPNG(string) ([]byte, error) { return []byte("png"), nil }

type fixture struct {
	svc    *SaleServiceImpl
	repo   *database.MemorySaleRepository
	oracle *fakeOracle
	msg    *fakeMessaging
}

func newFixture(t *testing.T) *fixture {
	repo := database.NewMemorySaleRepository()
	oracle := &fakeOracle{verdict: output.VerdictNotSettled, enabled: true}
	msg := &fakeMessaging{}
	builder := khqr.NewBuilder(khqr.Merchant{
		BankAccount: "myshop@aba",
		Name:        "My Shop",
		City:        "Phnom Penh",
	})
	svc := NewSaleService(repo, oracle, msg, fakeRenderer{}, builder, 5*time.Minute, zaptest.NewLogger(t))
	return &fixture{svc: svc, repo: repo, oracle: oracle, msg: msg}
}

func (f *fixture) create(t *testing.T) *input.SaleCreated {
	t.Helper()
	created, err := f.svc.CreateSale(input.CreateSaleRequest{
		Amount:   decimal.NewFromInt(1),
		Currency: core.CurrencyUSD,
	})
	require.NoError(t, err)
	return created
}

func TestCreateSale(t *testing.T) {
	f := newFixture(t)

	created := f.create(t)

	assert.Equal(t, core.SaleStatusPending, created.Status)
	assert.Len(t, created.Fingerprint, 32)
	assert.NotEmpty(t, created.BillNumber)
	assert.NotEmpty(t, created.QRPNGBase64)
	assert.True(t, created.ExpiresAt.After(created.CreatedAt))
}

func TestCreateSale_SameInputsDistinctFingerprints(t *testing.T) {
	f := newFixture(t)

	a := f.create(t)
	b := f.create(t)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestCreateSale_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateSale(input.CreateSaleRequest{
		Amount:   decimal.Zero,
		Currency: core.CurrencyUSD,
	})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.svc.CreateSale(input.CreateSaleRequest{
		Amount:   decimal.NewFromInt(1),
		Currency: core.Currency("EUR"),
	})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestCheckStatus_UnknownID(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckStatus(uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCheckStatus_StaysPendingWhileNotSettled(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	for i := 0; i < 3; i++ {
		status, err := f.svc.CheckStatus(created.ID)
		require.NoError(t, err)
		assert.Equal(t, core.SaleStatusPending, status.Status)
	}
	assert.EqualValues(t, 3, atomic.LoadInt64(&f.oracle.calls))
	assert.Zero(t, f.msg.count())
}

func TestCheckStatus_SettledTransitionsToPaid(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	f.oracle.set(output.VerdictSettled)

	status, err := f.svc.CheckStatus(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPaid, status.Status)
	assert.Equal(t, created.Fingerprint, status.Fingerprint)

	// PAID is terminal: the next poll answers from the store without
	// consulting the oracle again.
	calls := atomic.LoadInt64(&f.oracle.calls)
	status, err = f.svc.CheckStatus(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPaid, status.Status)
	assert.Equal(t, calls, atomic.LoadInt64(&f.oracle.calls))

	detail, err := f.svc.GetSale(created.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.SettledAt)
	assert.Equal(t, 1, f.msg.count())
}

func TestCheckStatus_UnknownVerdictStaysPending(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	f.oracle.set(output.VerdictUnknown)

	status, err := f.svc.CheckStatus(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPending, status.Status)
}

func TestCheckStatus_DeclinedTransitionsToFailed(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	f.oracle.set(output.VerdictDeclined)

	status, err := f.svc.CheckStatus(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusFailed, status.Status)
	assert.Zero(t, f.msg.count())
}

func TestCheckStatus_OracleDisabled(t *testing.T) {
	f := newFixture(t)
	f.oracle.enabled = false
	f.oracle.set(output.VerdictSettled)
	created := f.create(t)

	status, err := f.svc.CheckStatus(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPending, status.Status)
	assert.Zero(t, atomic.LoadInt64(&f.oracle.calls))
}

func TestCheckStatus_ExpiresOverdueSale(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	f.svc.now = func() time.Time { return created.ExpiresAt.Add(time.Second) }
	// Even a settled verdict cannot resurrect an expired sale.
	f.oracle.set(output.VerdictSettled)

	status, err := f.svc.CheckStatus(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusExpired, status.Status)

	status, err = f.svc.CheckStatus(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusExpired, status.Status)
	assert.Zero(t, f.msg.count())
}

func TestConfirmPaidManually(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	status, err := f.svc.ConfirmPaidManually(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPaid, status.Status)
	// The manual path never touches the oracle.
	assert.Zero(t, atomic.LoadInt64(&f.oracle.calls))
	assert.Equal(t, 1, f.msg.count())

	// Confirming an already paid sale is an idempotent success.
	status, err = f.svc.ConfirmPaidManually(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusPaid, status.Status)
	assert.Equal(t, 1, f.msg.count())
}

func TestConfirmPaidManually_RefusedAfterCancel(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	_, err := f.svc.CancelSale(created.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPaidManually(created.ID)
	assert.ErrorIs(t, err, core.ErrStaleTransition)
}

func TestCancelSale(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	status, err := f.svc.CancelSale(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusCancelled, status.Status)

	// Cancelling twice is idempotent.
	status, err = f.svc.CancelSale(created.ID)
	require.NoError(t, err)
	assert.Equal(t, core.SaleStatusCancelled, status.Status)
}

func TestCancelSale_RefusedWhenPaid(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)

	_, err := f.svc.ConfirmPaidManually(created.ID)
	require.NoError(t, err)

	_, err = f.svc.CancelSale(created.ID)
	assert.ErrorIs(t, err, core.ErrStaleTransition)
}

func TestConcurrentPolls_ExactlyOneSettlement(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)
	f.oracle.set(output.VerdictSettled)

	const pollers = 16
	var wg sync.WaitGroup
	results := make([]core.SaleStatus, pollers)
	wg.Add(pollers)
	for i := 0; i < pollers; i++ {
		go func(i int) {
			defer wg.Done()
			status, err := f.svc.CheckStatus(created.ID)
			if assert.NoError(t, err) {
				results[i] = status.Status
			}
		}(i)
	}
	wg.Wait()

	for _, st := range results {
		assert.Equal(t, core.SaleStatusPaid, st)
	}
	// Losers of the compare-and-swap race adopt the winner's state; only
	// the winner publishes.
	assert.Equal(t, 1, f.msg.count())

	detail, err := f.svc.GetSale(created.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.SettledAt)
}
