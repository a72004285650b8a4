// Package pending_reconciler sweeps transactions stuck in PENDING. The
// executor never commits a PENDING row, so anything old enough to see here
// is debris from a crash between insert and outcome.
package pending_reconciler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ledgerline/ledger-service/internal/infrastructure/config"
	"github.com/ledgerline/ledger-service/pkg/metrics"
)

// Sweeper marks stale PENDING transfers FAILED and writes their audit rows.
type Sweeper interface {
	ReapStalePending(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error)
}

type Worker struct {
	sweeper Sweeper
	cfg     config.ReconcilerConfig
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewWorker(sweeper Sweeper, cfg config.ReconcilerConfig, logger *zap.Logger) *Worker {
	return &Worker{
		sweeper: sweeper,
		cfg:     cfg,
		cron:    cron.New(),
		logger:  logger,
	}
}

func (w *Worker) Start() error {
	_, err := w.cron.AddFunc(w.cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		w.sweep(ctx)
	})
	if err != nil {
		return err
	}

	w.cron.Start()
	w.logger.Info("pending reconciler started",
		zap.String("schedule", w.cfg.Schedule),
		zap.Int("stale_after_mins", w.cfg.StaleAfterMins))
	return nil
}

func (w *Worker) Stop() {
	ctx := w.cron.Stop()
	<-ctx.Done()
	w.logger.Info("pending reconciler stopped")
}

func (w *Worker) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-time.Duration(w.cfg.StaleAfterMins) * time.Minute)

	reaped, err := w.sweeper.ReapStalePending(ctx, cutoff)
	if err != nil {
		w.logger.Error("stale PENDING sweep failed", zap.Error(err))
		return
	}
	if len(reaped) == 0 {
		return
	}

	metrics.StalePendingReapedTotal.Add(float64(len(reaped)))
	for _, id := range reaped {
		w.logger.Warn("reaped stale PENDING transaction",
			zap.String("transaction_id", id.String()))
	}
}
