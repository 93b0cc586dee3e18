package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/khqrpos/pos-gateway/internal/core"
	"github.com/khqrpos/pos-gateway/internal/metrics"
	"github.com/khqrpos/pos-gateway/internal/port/output"
)

const sweepBatchSize = 100

// ExpirySweeper eagerly moves overdue PENDING sales to EXPIRED so that
// sales nobody polls anymore still reach a terminal state. It shares the
// compare-and-swap path with the lazy expiry in the service, so the two
// can never double-transition a sale.
type ExpirySweeper struct {
	saleRepo output.SaleRepository
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(saleRepo output.SaleRepository, interval time.Duration, logger *zap.Logger) *ExpirySweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExpirySweeper{
		saleRepo: saleRepo,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run sweeps on the configured interval until stop is closed.
func (w *ExpirySweeper) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.SweepOnce()
		case <-stop:
			return
		}
	}
}

// SweepOnce expires one batch of overdue pending sales and returns the
// number of sales it transitioned.
func (w *ExpirySweeper) SweepOnce() int {
	now := w.now()
	overdue, err := w.saleRepo.FindExpiredPending(now, sweepBatchSize)
	if err != nil {
		w.logger.Error("failed to query overdue sales", zap.Error(err))
		return 0
	}

	expired := 0
	for _, sale := range overdue {
		_, err := w.saleRepo.Transition(sale.ID, core.SaleStatusPending, core.SaleStatusExpired, nil)
		if err != nil {
			// A concurrent poll settled or expired it first; fine either way.
			if errors.Is(err, core.ErrStaleTransition) {
				continue
			}
			w.logger.Error("failed to expire sale",
				zap.String("sale_id", sale.ID.String()),
				zap.Error(err),
			)
			continue
		}
		metrics.SalesTransitioned.WithLabelValues(string(core.SaleStatusExpired)).Inc()
		expired++
	}

	if expired > 0 {
		w.logger.Info("expired overdue sales", zap.Int("count", expired))
	}
	return expired
}
