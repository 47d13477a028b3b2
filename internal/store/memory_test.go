package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
)

func seedRun(t *testing.T, s *MemoryStore, id string) {
	t.Helper()
	_, err := s.EnsureRun(context.Background(), id, domain.DirectionOutward, []string{"C1"})
	require.NoError(t, err)
}

func TestEnsureRun_MergesCycles(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	run, err := s.EnsureRun(ctx, "RUN1", domain.DirectionOutward, []string{"C2", "C1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, run.Cycles)
	assert.Equal(t, domain.RunStatusRunning, run.Status)

	run, err = s.EnsureRun(ctx, "RUN1", domain.DirectionOutward, []string{"C3", "C1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2", "C3"}, run.Cycles)
}

func TestEnsureRun_AbortedRunRejected(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")
	require.NoError(t, s.SetRunStatus(ctx, "RUN1", domain.RunStatusAborted))

	_, err := s.EnsureRun(ctx, "RUN1", domain.DirectionOutward, nil)
	require.ErrorIs(t, err, domain.ErrRunAborted)
}

func TestStageCommitCycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")

	staged := []domain.ReconRecord{
		{RRN: "200000000000002", Cycle: "C1", MatchState: domain.MatchStateOrphan},
		{RRN: "100000000000001", Cycle: "C1", MatchState: domain.MatchStateMatched},
	}
	require.NoError(t, s.StageCycle(ctx, "RUN1", "C1", staged))

	// Staged records are invisible to readers.
	recs, err := s.ReconRecords(ctx, "RUN1", "C1")
	require.NoError(t, err)
	assert.Empty(t, recs)

	require.NoError(t, s.CommitCycle(ctx, "RUN1", "C1"))
	recs, err = s.ReconRecords(ctx, "RUN1", "C1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	// Committed snapshot orders by RRN.
	assert.Equal(t, "100000000000001", recs[0].RRN)
	assert.Equal(t, "200000000000002", recs[1].RRN)
}

func TestCommitCycle_NothingStaged(t *testing.T) {
	s := NewMemoryStore()
	seedRun(t, s, "RUN1")
	require.Error(t, s.CommitCycle(context.Background(), "RUN1", "C1"))
}

func TestDiscardStaged_LeavesCommitted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")

	require.NoError(t, s.StageCycle(ctx, "RUN1", "C1", []domain.ReconRecord{{RRN: "100000000000001", Cycle: "C1"}}))
	require.NoError(t, s.CommitCycle(ctx, "RUN1", "C1"))
	require.NoError(t, s.StageCycle(ctx, "RUN1", "C2", []domain.ReconRecord{{RRN: "200000000000002", Cycle: "C2"}}))

	discarded, err := s.DiscardStaged(ctx, "RUN1")
	require.NoError(t, err)
	assert.Equal(t, 1, discarded)

	recs, err := s.ReconRecords(ctx, "RUN1", "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestRemoveFileRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")
	require.NoError(t, s.AddRecords(ctx, "RUN1", []domain.TransactionRecord{
		{RRN: "100000000000001", Cycle: "C1", SourceFile: "a.csv"},
		{RRN: "200000000000002", Cycle: "C1", SourceFile: "b.csv"},
		{RRN: "300000000000003", Cycle: "C1", SourceFile: "a.csv"},
	}))

	removed, err := s.RemoveFileRecords(ctx, "RUN1", "a.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	recs, err := s.Records(ctx, "RUN1", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b.csv", recs[0].SourceFile)
}

func TestPutReconRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")
	require.NoError(t, s.StageCycle(ctx, "RUN1", "C1", []domain.ReconRecord{
		{RRN: "100000000000001", Cycle: "C1", MatchState: domain.MatchStateMismatch},
	}))
	require.NoError(t, s.CommitCycle(ctx, "RUN1", "C1"))

	rec, err := s.GetReconRecord(ctx, "RUN1", "100000000000001")
	require.NoError(t, err)
	rec.Exception = domain.ExceptionMismatch
	require.NoError(t, s.PutReconRecord(ctx, "RUN1", rec))

	rec, err = s.GetReconRecord(ctx, "RUN1", "100000000000001")
	require.NoError(t, err)
	assert.Equal(t, domain.ExceptionMismatch, rec.Exception)

	rec.RRN = "999999999999999"
	require.Error(t, s.PutReconRecord(ctx, "RUN1", rec))
}

func TestCheckpointLedger(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")

	cp := domain.Checkpoint{ID: uuid.New(), RunID: "RUN1", Level: domain.RollbackCycleWise, Status: domain.CheckpointPending}
	require.NoError(t, s.AppendCheckpoint(ctx, cp))
	require.NoError(t, s.SetCheckpointStatus(ctx, cp.ID, domain.CheckpointCompleted))

	cps, err := s.Checkpoints(ctx, "RUN1")
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, domain.CheckpointCompleted, cps[0].Status)

	require.Error(t, s.SetCheckpointStatus(ctx, uuid.New(), domain.CheckpointCompleted))
}

func TestSetBatchStatuses(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")
	require.NoError(t, s.SaveBatches(ctx, "RUN1", "", []domain.TTUMBatch{
		{Type: domain.BatchTCC, Status: domain.BatchStatusPending},
		{Type: domain.BatchDRC, Status: domain.BatchStatusSettled},
	}))

	n, err := s.SetBatchStatuses(ctx, "RUN1", domain.BatchStatusPending, domain.BatchStatusSettled)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	batches, err := s.Batches(ctx, "RUN1")
	require.NoError(t, err)
	for _, b := range batches {
		assert.Equal(t, domain.BatchStatusSettled, b.Status)
	}
}

func TestSaveBatches_CycleScoped(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedRun(t, s, "RUN1")
	require.NoError(t, s.SaveBatches(ctx, "RUN1", "C1", []domain.TTUMBatch{
		{Cycle: "C1", Type: domain.BatchTCC, Status: domain.BatchStatusSettled},
	}))
	require.NoError(t, s.SaveBatches(ctx, "RUN1", "C2", []domain.TTUMBatch{
		{Cycle: "C2", Type: domain.BatchDRC, Status: domain.BatchStatusPending},
	}))

	batches, err := s.Batches(ctx, "RUN1")
	require.NoError(t, err)
	require.Len(t, batches, 2)

	// Regenerating C2 leaves the settled C1 batch untouched.
	require.NoError(t, s.SaveBatches(ctx, "RUN1", "C2", []domain.TTUMBatch{
		{Cycle: "C2", Type: domain.BatchDRC, Status: domain.BatchStatusPending},
	}))
	batches, err = s.Batches(ctx, "RUN1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "C1", batches[0].Cycle)
	assert.Equal(t, domain.BatchStatusSettled, batches[0].Status)

	// An empty cycle replaces the whole run's batches.
	require.NoError(t, s.SaveBatches(ctx, "RUN1", "", nil))
	batches, err = s.Batches(ctx, "RUN1")
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestRunIDs(t *testing.T) {
	s := NewMemoryStore()
	seedRun(t, s, "RUN2")
	seedRun(t, s, "RUN1")

	ids, err := s.RunIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"RUN1", "RUN2"}, ids)
}

func TestUnknownRun(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.GetRun(ctx, "RUN_MISSING")
	require.ErrorIs(t, err, domain.ErrRunNotFound)
	err = s.AddRecords(ctx, "RUN_MISSING", nil)
	require.ErrorIs(t, err, domain.ErrRunNotFound)
	_, err = s.ReconRecords(ctx, "RUN_MISSING", "")
	require.ErrorIs(t, err, domain.ErrRunNotFound)
}
