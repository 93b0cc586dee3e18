package service

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/khqrpos/pos-gateway/internal/core"
	"github.com/khqrpos/pos-gateway/internal/core/khqr"
	"github.com/khqrpos/pos-gateway/internal/metrics"
	"github.com/khqrpos/pos-gateway/internal/port/input"
	"github.com/khqrpos/pos-gateway/internal/port/output"
)

// SaleServiceImpl implements the SaleService input port. It is the sale
// lifecycle state machine: creation, lazy check-on-read settlement, expiry
// and the manual test confirmation path. All mutation funnels through the
// repository's compare-and-swap, so concurrent pollers on one sale are
// serialized by the store, never by locks held here.
type SaleServiceImpl struct {
	saleRepo output.SaleRepository
	oracle   output.SettlementOracle
	saleMsg  output.SaleMessaging
	renderer output.QRRenderer
	builder  *khqr.Builder
	saleTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSaleService creates a new sale service
func NewSaleService(
	saleRepo output.SaleRepository,
	oracle output.SettlementOracle,
	saleMsg output.SaleMessaging,
	renderer output.QRRenderer,
	builder *khqr.Builder,
	saleTTL time.Duration,
	logger *zap.Logger,
) *SaleServiceImpl {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaleServiceImpl{
		saleRepo: saleRepo,
		oracle:   oracle,
		saleMsg:  saleMsg,
		renderer: renderer,
		builder:  builder,
		saleTTL:  saleTTL,
		logger:   logger,
		now:      time.Now,
	}
}

var _ input.SaleService = (*SaleServiceImpl)(nil)

// CreateSale validates the request, derives the KHQR payload and its
// fingerprint, and persists the sale as PENDING.
func (s *SaleServiceImpl) CreateSale(req input.CreateSaleRequest) (*input.SaleCreated, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", core.ErrValidation)
	}
	if !core.ValidCurrency(req.Currency) {
		return nil, fmt.Errorf("%w: currency must be USD or KHR", core.ErrValidation)
	}

	id := uuid.New()
	createdAt := s.now().UTC()
	// One bill number per sale; it feeds the payload hash, so two sales
	// with the same amount and currency still get distinct fingerprints.
	billNumber := fmt.Sprintf("POS-%d-%s", createdAt.Unix(), id.String()[:8])

	payload, err := s.builder.Payload(req.Amount, req.Currency, billNumber, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment payload: %w", err)
	}
	fingerprint := khqr.Fingerprint(payload)

	sale := &core.Sale{
		ID:          id,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Note:        req.Note,
		CashierID:   req.CashierID,
		BillNumber:  billNumber,
		Fingerprint: fingerprint,
		Status:      core.SaleStatusPending,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(s.saleTTL),
	}

	if err := s.saleRepo.Create(sale); err != nil {
		return nil, fmt.Errorf("failed to save sale: %w", err)
	}

	png, err := s.renderer.RenderPNG(payload)
	if err != nil {
		// The sale exists and is payable by fingerprint; rendering is a
		// presentation concern, so surface the failure rather than roll back.
		return nil, fmt.Errorf("failed to render QR: %w", err)
	}

	metrics.SalesCreated.Inc()
	s.logger.Info("sale created",
		zap.String("sale_id", id.String()),
		zap.String("bill_number", billNumber),
		zap.String("fingerprint", fingerprint),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", string(req.Currency)),
	)

	return &input.SaleCreated{
		ID:          sale.ID,
		Amount:      sale.Amount,
		Currency:    sale.Currency,
		BillNumber:  sale.BillNumber,
		Fingerprint: sale.Fingerprint,
		Status:      sale.Status,
		QRPNGBase64: base64.StdEncoding.EncodeToString(png),
		CreatedAt:   sale.CreatedAt,
		ExpiresAt:   sale.ExpiresAt,
	}, nil
}

// GetSale returns the full record, first applying lazy expiry so polling
// clients never see a stale PENDING past the deadline.
func (s *SaleServiceImpl) GetSale(id uuid.UUID) (*input.SaleDetail, error) {
	sale, err := s.saleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	sale, err = s.refreshExpiry(sale)
	if err != nil {
		return nil, err
	}
	return &input.SaleDetail{
		ID:          sale.ID,
		Amount:      sale.Amount,
		Currency:    sale.Currency,
		Note:        sale.Note,
		CashierID:   sale.CashierID,
		BillNumber:  sale.BillNumber,
		Fingerprint: sale.Fingerprint,
		Status:      sale.Status,
		CreatedAt:   sale.CreatedAt,
		ExpiresAt:   sale.ExpiresAt,
		SettledAt:   sale.SettledAt,
	}, nil
}

// CheckStatus is the polling entry point. For a PENDING sale it performs at
// most one oracle lookup and, on a definitive SETTLED verdict, one
// compare-and-swap to PAID. Oracle failures degrade to "still PENDING" and
// never surface as errors.
func (s *SaleServiceImpl) CheckStatus(id uuid.UUID) (*input.SaleStatus, error) {
	sale, err := s.saleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	sale, err = s.refreshExpiry(sale)
	if err != nil {
		return nil, err
	}
	if sale.IsTerminal() {
		return statusOf(sale), nil
	}
	if !s.oracle.Enabled() {
		return statusOf(sale), nil
	}

	verdict := s.oracle.CheckSettlement(sale.Fingerprint)
	metrics.OracleVerdicts.WithLabelValues(string(verdict)).Inc()

	switch verdict {
	case output.VerdictSettled:
		sale, err = s.settle(sale)
		if err != nil {
			return nil, err
		}
	case output.VerdictDeclined:
		sale, err = s.transitionOrCurrent(sale.ID, core.SaleStatusFailed, nil)
		if err != nil {
			return nil, err
		}
	case output.VerdictUnknown:
		// Stay PENDING; repeated UNKNOWNs are an outage signal, so keep
		// them visible in logs and the verdict counter.
		s.logger.Warn("settlement oracle unavailable, reporting PENDING",
			zap.String("sale_id", sale.ID.String()),
			zap.String("fingerprint", sale.Fingerprint),
		)
	default:
		// NOT_SETTLED: nothing to do, the caller will poll again.
	}

	return statusOf(sale), nil
}

// ConfirmPaidManually forces PENDING→PAID without consulting the oracle.
// Strictly a demo/test path; the HTTP layer gates it behind configuration.
func (s *SaleServiceImpl) ConfirmPaidManually(id uuid.UUID) (*input.SaleStatus, error) {
	sale, err := s.saleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if sale.Status == core.SaleStatusPaid {
		return statusOf(sale), nil
	}
	settledAt := s.now().UTC()
	sale, err = s.saleRepo.Transition(id, core.SaleStatusPending, core.SaleStatusPaid, &settledAt)
	if err != nil {
		return nil, err
	}
	metrics.SalesTransitioned.WithLabelValues(string(core.SaleStatusPaid)).Inc()
	s.publishSettled(sale)
	s.logger.Info("sale confirmed manually", zap.String("sale_id", id.String()))
	return statusOf(sale), nil
}

// CancelSale moves a pending sale to CANCELLED. A PAID sale cannot be
// cancelled; the stale-transition error surfaces as a conflict upstream.
func (s *SaleServiceImpl) CancelSale(id uuid.UUID) (*input.SaleStatus, error) {
	sale, err := s.saleRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if sale.Status == core.SaleStatusCancelled {
		return statusOf(sale), nil
	}
	sale, err = s.saleRepo.Transition(id, core.SaleStatusPending, core.SaleStatusCancelled, nil)
	if err != nil {
		return nil, err
	}
	metrics.SalesTransitioned.WithLabelValues(string(core.SaleStatusCancelled)).Inc()
	s.logger.Info("sale cancelled", zap.String("sale_id", id.String()))
	return statusOf(sale), nil
}

// settle performs the PENDING→PAID compare-and-swap. Only the winner of a
// concurrent race publishes the settled event; losers adopt the current
// record, so both observers report PAID but exactly one event goes out.
func (s *SaleServiceImpl) settle(sale *core.Sale) (*core.Sale, error) {
	settledAt := s.now().UTC()
	updated, err := s.saleRepo.Transition(sale.ID, core.SaleStatusPending, core.SaleStatusPaid, &settledAt)
	if err != nil {
		if errors.Is(err, core.ErrStaleTransition) {
			return updated, nil
		}
		return nil, err
	}
	metrics.SalesTransitioned.WithLabelValues(string(core.SaleStatusPaid)).Inc()
	s.publishSettled(updated)
	s.logger.Info("sale settled",
		zap.String("sale_id", updated.ID.String()),
		zap.String("fingerprint", updated.Fingerprint),
	)
	return updated, nil
}

// refreshExpiry transitions an overdue pending sale to EXPIRED. A lost race
// means someone else already finalized it; adopt their result.
func (s *SaleServiceImpl) refreshExpiry(sale *core.Sale) (*core.Sale, error) {
	if !sale.IsExpiredBy(s.now()) {
		return sale, nil
	}
	updated, err := s.transitionOrCurrent(sale.ID, core.SaleStatusExpired, nil)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SaleServiceImpl) transitionOrCurrent(id uuid.UUID, to core.SaleStatus, settledAt *time.Time) (*core.Sale, error) {
	updated, err := s.saleRepo.Transition(id, core.SaleStatusPending, to, settledAt)
	if err != nil {
		if errors.Is(err, core.ErrStaleTransition) {
			return updated, nil
		}
		return nil, err
	}
	metrics.SalesTransitioned.WithLabelValues(string(to)).Inc()
	return updated, nil
}

// publishSettled fans the event out to downstream consumers. Publishing is
// best effort: the settlement itself is already durable, so a broker
// failure is logged and absorbed.
func (s *SaleServiceImpl) publishSettled(sale *core.Sale) {
	if s.saleMsg == nil || sale.SettledAt == nil {
		return
	}
	event := output.SettledEvent{
		SaleID:      sale.ID,
		Fingerprint: sale.Fingerprint,
		Amount:      sale.Amount,
		Currency:    sale.Currency,
		SettledAt:   *sale.SettledAt,
	}
	if err := s.saleMsg.PublishSettled(event); err != nil {
		s.logger.Error("failed to publish settled event",
			zap.String("sale_id", sale.ID.String()),
			zap.Error(err),
		)
	}
}

func statusOf(sale *core.Sale) *input.SaleStatus {
	return &input.SaleStatus{
		ID:          sale.ID,
		Status:      sale.Status,
		Fingerprint: sale.Fingerprint,
	}
}
