// Package rollback provides the four tiered undo levels over the append-only
// checkpoint ledger. Every level writes its checkpoint before mutating
// state; a failed rollback leaves state unchanged and the checkpoint
// recorded as failed.
package rollback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/observability"
	"github.com/settleops/recon-engine/internal/runlock"
	"github.com/settleops/recon-engine/internal/store"
)

// Request names the run and level-specific target of one rollback call.
type Request struct {
	RunID  string
	Level  string
	File   string
	Cycle  string
	Reason string
}

// Result reports the recorded checkpoint and what the restoration did.
type Result struct {
	RollbackID uuid.UUID `json:"rollback_id"`
	Status     string    `json:"status"`
	Detail     string    `json:"result"`
}

// Manager guards every rollback behind the run lock and the ledger.
type Manager struct {
	store  store.RunStore
	locker runlock.Locker
	now    func() time.Time
}

// NewManager creates a rollback manager.
func NewManager(st store.RunStore, locker runlock.Locker, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: st, locker: locker, now: now}
}

// Rollback performs one undo at the requested level. Concurrent mutating
// operations against the same run are rejected with ErrRunConflict.
func (m *Manager) Rollback(ctx context.Context, req Request) (Result, error) {
	if err := validate(req); err != nil {
		return Result{}, err
	}
	if _, err := m.store.GetRun(ctx, req.RunID); err != nil {
		return Result{}, err
	}

	release, err := m.locker.Acquire(ctx, req.RunID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	cp := domain.Checkpoint{
		ID:          uuid.New(),
		RunID:       req.RunID,
		Level:       req.Level,
		Cycle:       req.Cycle,
		File:        req.File,
		Reason:      req.Reason,
		SnapshotRef: fmt.Sprintf("runs/%s/checkpoints/%s", req.RunID, req.Level),
		Status:      domain.CheckpointPending,
		CreatedAt:   m.now(),
	}
	if err := m.store.AppendCheckpoint(ctx, cp); err != nil {
		return Result{}, fmt.Errorf("append checkpoint: %w", err)
	}

	detail, applyErr := m.apply(ctx, req)
	if applyErr != nil {
		if err := m.store.SetCheckpointStatus(ctx, cp.ID, domain.CheckpointFailed); err != nil {
			zap.L().Error("mark checkpoint failed", zap.String("rollback_id", cp.ID.String()), zap.Error(err))
		}
		observability.IncrementRollback(req.Level, "failed")
		return Result{RollbackID: cp.ID, Status: domain.CheckpointFailed}, applyErr
	}

	if err := m.store.SetCheckpointStatus(ctx, cp.ID, domain.CheckpointCompleted); err != nil {
		return Result{}, fmt.Errorf("mark checkpoint completed: %w", err)
	}
	observability.IncrementRollback(req.Level, "completed")
	zap.L().Info("rollback completed",
		zap.String("run_id", req.RunID),
		zap.String("level", req.Level),
		zap.String("rollback_id", cp.ID.String()),
		zap.String("detail", detail),
	)
	return Result{RollbackID: cp.ID, Status: domain.CheckpointCompleted, Detail: detail}, nil
}

// History returns the recorded checkpoint ledger for a run.
func (m *Manager) History(ctx context.Context, runID string) ([]domain.Checkpoint, error) {
	return m.store.Checkpoints(ctx, runID)
}

func validate(req Request) error {
	switch req.Level {
	case domain.RollbackIngestion:
		if req.File == "" {
			return errors.New("ingestion rollback requires filename")
		}
	case domain.RollbackCycleWise:
		if req.Cycle == "" {
			return errors.New("cycle-wise rollback requires cycle_id")
		}
	case domain.RollbackMidRecon, domain.RollbackAccounting:
		if req.Reason == "" {
			return fmt.Errorf("%s rollback requires a reason", req.Level)
		}
	default:
		return fmt.Errorf("unknown rollback level %q", req.Level)
	}
	return nil
}

func (m *Manager) apply(ctx context.Context, req Request) (string, error) {
	switch req.Level {
	case domain.RollbackIngestion:
		return m.ingestion(ctx, req.RunID, req.File)
	case domain.RollbackMidRecon:
		return m.midRecon(ctx, req.RunID)
	case domain.RollbackCycleWise:
		return m.cycleWise(ctx, req.RunID, req.Cycle)
	case domain.RollbackAccounting:
		return m.accounting(ctx, req.RunID)
	}
	return "", fmt.Errorf("unknown rollback level %q", req.Level)
}

// ingestion removes one file's contribution from an otherwise-valid run.
// Rejected while classified records still reference the file's cycles; those
// must first be unclassified via a cycle-wise rollback.
func (m *Manager) ingestion(ctx context.Context, runID, file string) (string, error) {
	records, err := m.store.Records(ctx, runID, "")
	if err != nil {
		return "", err
	}
	affected := make(map[string]struct{})
	for _, rec := range records {
		if rec.SourceFile == file {
			affected[rec.Cycle] = struct{}{}
		}
	}
	if len(affected) == 0 {
		return "", &domain.PreconditionError{
			Level:  domain.RollbackIngestion,
			Reason: fmt.Sprintf("file %s contributed no records to run %s", file, runID),
		}
	}
	for cycle := range affected {
		classified, err := m.store.ReconRecords(ctx, runID, cycle)
		if err != nil {
			return "", err
		}
		if len(classified) > 0 {
			return "", &domain.PreconditionError{
				Level:  domain.RollbackIngestion,
				Reason: fmt.Sprintf("cycle %s is already classified; cycle-wise rollback must run first", cycle),
			}
		}
	}

	removed, err := m.store.RemoveFileRecords(ctx, runID, file)
	if err != nil {
		return "", err
	}
	// Drop any in-flight state for the affected cycles so the next run
	// starts from UNMATCHED.
	for cycle := range affected {
		if _, err := m.store.ResetCycle(ctx, runID, cycle); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("removed %d records from %s", removed, file), nil
}

// midRecon discards every reconciliation record still in flight, restoring
// the run to its last committed checkpoint.
func (m *Manager) midRecon(ctx context.Context, runID string) (string, error) {
	discarded, err := m.store.DiscardStaged(ctx, runID)
	if err != nil {
		return "", err
	}
	committed, err := m.store.ReconRecords(ctx, runID, "")
	if err != nil {
		return "", err
	}
	status := domain.RunStatusRunning
	if len(committed) > 0 {
		status = domain.RunStatusClassified
	}
	if err := m.store.SetRunStatus(ctx, runID, status); err != nil {
		return "", err
	}
	return fmt.Sprintf("discarded %d in-flight records", discarded), nil
}

// cycleWise restores one named cycle to UNMATCHED, leaving other cycles in
// the same run untouched.
func (m *Manager) cycleWise(ctx context.Context, runID, cycle string) (string, error) {
	existing, err := m.store.ReconRecords(ctx, runID, cycle)
	if err != nil {
		return "", err
	}
	if len(existing) == 0 {
		return "", &domain.PreconditionError{
			Level:  domain.RollbackCycleWise,
			Reason: fmt.Sprintf("cycle %s has no committed reconciliation records", cycle),
		}
	}
	reset, err := m.store.ResetCycle(ctx, runID, cycle)
	if err != nil {
		return "", err
	}
	remaining, err := m.store.ReconRecords(ctx, runID, "")
	if err != nil {
		return "", err
	}
	if len(remaining) == 0 {
		if err := m.store.SetRunStatus(ctx, runID, domain.RunStatusRunning); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("reset %d records in cycle %s to %s", reset, cycle, domain.MatchStateUnmatched), nil
}

// accounting reverts settled instruction batches to pending. Match states
// and exceptions are untouched; only the instruction lifecycle moves.
func (m *Manager) accounting(ctx context.Context, runID string) (string, error) {
	reverted, err := m.store.SetBatchStatuses(ctx, runID, domain.BatchStatusSettled, domain.BatchStatusPending)
	if err != nil {
		return "", err
	}
	if reverted == 0 {
		return "", &domain.PreconditionError{
			Level:  domain.RollbackAccounting,
			Reason: "no settled instruction batches to revert",
		}
	}
	return fmt.Sprintf("reverted %d batches to %s", reverted, domain.BatchStatusPending), nil
}
