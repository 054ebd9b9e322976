package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"shortlet-payments/internal/usecase"
)

// ReconcileWorker periodically drives the reconciliation engine in-process,
// for deployments without an external cron hitting the trigger endpoint.
// The engine's own optimistic locking keeps overlapping ticks safe.
type ReconcileWorker struct {
	uc       usecase.ReconcileUseCase
	interval time.Duration
	timeout  time.Duration // per-run bound
	log      *zerolog.Logger
}

func NewReconcileWorker(uc usecase.ReconcileUseCase, interval time.Duration, log *zerolog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		uc:       uc,
		interval: interval,
		timeout:  5 * time.Minute,
		log:      log,
	}
}

// Start blocks until ctx is done. A non-positive interval disables the worker.
func (w *ReconcileWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Info().Msg("reconcile worker disabled")
		return
	}
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *ReconcileWorker) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	summary, err := w.uc.Run(runCtx, usecase.TriggerWorker, 0)
	if err != nil {
		w.log.Error().Err(err).Msg("reconcile worker run failed")
		return
	}
	if summary.Scanned > 0 {
		w.log.Info().
			Int("scanned", summary.Scanned).
			Int("reconciled", summary.Reconciled).
			Int("flagged", summary.FlaggedForReconcile).
			Msg("reconcile worker pass")
	}
}
