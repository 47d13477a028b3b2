package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/engine/ttum"
	"github.com/settleops/recon-engine/internal/observability"
	"github.com/settleops/recon-engine/internal/runlock"
	"github.com/settleops/recon-engine/internal/store"
)

// TTUMService wraps the generator behind the run lock and persists the
// resulting batches.
type TTUMService struct {
	store     store.RunStore
	locker    runlock.Locker
	generator *ttum.Generator
}

// NewTTUMService creates the instruction-generation service.
func NewTTUMService(st store.RunStore, locker runlock.Locker, generator *ttum.Generator) *TTUMService {
	return &TTUMService{store: st, locker: locker, generator: generator}
}

// GenerateResult reports the batches produced plus the per-batch
// configuration failures (partial success).
type GenerateResult struct {
	Batches  []domain.TTUMBatch `json:"batches"`
	Failures []string           `json:"failures,omitempty"`
}

// Generate builds instruction batches from the run's committed
// classification snapshot. Regeneration on unchanged data is idempotent.
func (s *TTUMService) Generate(ctx context.Context, runID, cycle string) (GenerateResult, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return GenerateResult{}, err
	}
	if run.Status != domain.RunStatusClassified && run.Status != domain.RunStatusInstructed {
		return GenerateResult{}, &domain.RunStateError{
			RunID:  runID,
			Status: run.Status,
			Op:     "classification must complete before instruction generation",
		}
	}

	release, err := s.locker.Acquire(ctx, runID)
	if err != nil {
		return GenerateResult{}, err
	}
	defer release()

	recs, err := s.store.ReconRecords(ctx, runID, cycle)
	if err != nil {
		return GenerateResult{}, err
	}

	batches, failures := s.generator.Generate(runID, cycle, recs)
	if err := s.store.SaveBatches(ctx, runID, cycle, batches); err != nil {
		return GenerateResult{}, err
	}
	if len(batches) > 0 {
		if err := s.store.SetRunStatus(ctx, runID, domain.RunStatusInstructed); err != nil {
			return GenerateResult{}, err
		}
	}

	res := GenerateResult{Batches: batches}
	for _, b := range batches {
		observability.AddTTUMLines(b.Type, len(b.Lines))
	}
	for _, f := range failures {
		res.Failures = append(res.Failures, f.Error())
		zap.L().Warn("ttum batch generation failed", zap.String("run_id", runID), zap.Error(f))
	}
	zap.L().Info("ttum batches generated",
		zap.String("run_id", runID),
		zap.Int("batches", len(batches)),
		zap.Int("failures", len(failures)),
	)
	return res, nil
}

// List returns the run's persisted instruction batches.
func (s *TTUMService) List(ctx context.Context, runID string) ([]domain.TTUMBatch, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.Batches(ctx, runID)
}

// MarkSettled records downstream settlement confirmation for the run's
// pending batches. The accounting-level rollback is its inverse.
func (s *TTUMService) MarkSettled(ctx context.Context, runID string) (int, error) {
	release, err := s.locker.Acquire(ctx, runID)
	if err != nil {
		return 0, err
	}
	defer release()
	return s.store.SetBatchStatuses(ctx, runID, domain.BatchStatusPending, domain.BatchStatusSettled)
}
