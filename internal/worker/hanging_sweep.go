package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/observability"
	"github.com/settleops/recon-engine/internal/service"
)

// HangingSweepWorker periodically re-classifies HANGING records whose
// cut-off window has lapsed so they resolve to their terminal exception
// without operator action.
type HangingSweepWorker struct {
	coordinator *service.Coordinator
	interval    time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewHangingSweepWorker constructs a worker with a default interval.
func NewHangingSweepWorker(coordinator *service.Coordinator) *HangingSweepWorker {
	return &HangingSweepWorker{
		coordinator: coordinator,
		interval:    15 * time.Minute,
		stopCh:      make(chan struct{}),
	}
}

// WithInterval updates the sweep interval.
func (w *HangingSweepWorker) WithInterval(interval time.Duration) *HangingSweepWorker {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Start blocks and sweeps at the configured interval.
func (w *HangingSweepWorker) Start(ctx context.Context) {
	zap.L().Info("hanging sweep worker starting", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("hanging sweep worker context canceled")
			return
		case <-w.stopCh:
			zap.L().Info("hanging sweep worker stop signal received")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the running worker loop.
func (w *HangingSweepWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *HangingSweepWorker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

func (w *HangingSweepWorker) runOnce(ctx context.Context) {
	resolved, err := w.coordinator.ReclassifyHanging(ctx)
	if err != nil {
		observability.IncrementWorkerRun("hanging_sweep", "failed")
		zap.L().Error("hanging sweep failed", zap.Error(err))
		return
	}
	if resolved > 0 {
		zap.L().Info("hanging records resolved", zap.Int("resolved", resolved))
	}
	observability.IncrementWorkerRun("hanging_sweep", "success")
}
