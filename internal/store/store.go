// Package store holds the per-run state the engine operates on: the
// canonical record set supplied by the ingestion adapter, committed
// reconciliation snapshots, generated TTUM batches, and the append-only
// checkpoint ledger.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/settleops/recon-engine/internal/domain"
)

// RunStore is the single source of truth for what has been durably applied
// to a run. Staged reconciliation records are invisible to readers until
// CommitCycle makes them durable; commit is all-or-nothing per cycle.
type RunStore interface {
	// Runs.
	EnsureRun(ctx context.Context, id, direction string, cycles []string) (domain.Run, error)
	GetRun(ctx context.Context, id string) (domain.Run, error)
	SetRunStatus(ctx context.Context, id, status string) error
	RunIDs(ctx context.Context) ([]string, error)

	// Canonical records.
	AddRecords(ctx context.Context, runID string, recs []domain.TransactionRecord) error
	Records(ctx context.Context, runID, cycle string) ([]domain.TransactionRecord, error)
	RemoveFileRecords(ctx context.Context, runID, filename string) (int, error)

	// Reconciliation snapshots.
	StageCycle(ctx context.Context, runID, cycle string, recs []domain.ReconRecord) error
	CommitCycle(ctx context.Context, runID, cycle string) error
	DiscardStaged(ctx context.Context, runID string) (int, error)
	ResetCycle(ctx context.Context, runID, cycle string) (int, error)
	ReconRecords(ctx context.Context, runID, cycle string) ([]domain.ReconRecord, error)
	GetReconRecord(ctx context.Context, runID, rrn string) (domain.ReconRecord, error)
	PutReconRecord(ctx context.Context, runID string, rec domain.ReconRecord) error
	Cycles(ctx context.Context, runID string) ([]string, error)

	// Per-record data-quality findings for the run.
	SetIntegrityErrors(ctx context.Context, runID string, errs []domain.DataQualityError) error
	IntegrityErrors(ctx context.Context, runID string) ([]domain.DataQualityError, error)

	// TTUM batches. SaveBatches replaces only the batches belonging to
	// cycle; an empty cycle replaces the whole run's batches. Batches for
	// other cycles, including their settlement status, are untouched.
	SaveBatches(ctx context.Context, runID, cycle string, batches []domain.TTUMBatch) error
	Batches(ctx context.Context, runID string) ([]domain.TTUMBatch, error)
	SetBatchStatuses(ctx context.Context, runID, from, to string) (int, error)

	// Checkpoint ledger. Append-only; only the status may transition.
	AppendCheckpoint(ctx context.Context, cp domain.Checkpoint) error
	SetCheckpointStatus(ctx context.Context, id uuid.UUID, status string) error
	Checkpoints(ctx context.Context, runID string) ([]domain.Checkpoint, error)
}
