package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/engine/ttum"
)

var testAccounts = ttum.Accounts{
	NPCISettlement: "GL-NPCI-001",
	Payable:        "GL-PAY-002",
	Receivable:     "GL-RCV-003",
}

func newTTUMService(f *fixture, accounts ttum.Accounts) *TTUMService {
	return NewTTUMService(f.store, f.locker, ttum.New(accounts, fixedNow))
}

// declinedTriple builds a record declined at the network with no amount
// posted there; ledger and switch still agree, so it lands in
// PARTIAL_MISMATCH and classifies as NETWORK_DECLINED.
func declinedTriple(rrn, cycle string) []domain.TransactionRecord {
	ledger := txn(rrn, domain.SourceLedger, 1_230_000)
	sw := txn(rrn, domain.SourceSwitch, 1_230_000)
	declined := txn(rrn, domain.SourceNetwork, 0)
	declined.ResponseCode = "U30"
	recs := []domain.TransactionRecord{ledger, sw, declined}
	for i := range recs {
		recs[i].Cycle = cycle
	}
	return recs
}

func seedDeclined(t *testing.T, f *fixture) {
	t.Helper()
	f.seed(t, declinedTriple("636397811101710", "C1")...)
	classifyRun(t, f)
}

func TestTTUMGenerate(t *testing.T) {
	f := newFixture(t)
	seedDeclined(t, f)
	svc := newTTUMService(f, testAccounts)
	ctx := context.Background()

	res, err := svc.Generate(ctx, testRun, "")
	require.NoError(t, err)
	assert.Empty(t, res.Failures)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, domain.BatchRemitterRefund, res.Batches[0].Type)

	run, err := f.store.GetRun(ctx, testRun)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusInstructed, run.Status)

	// Regeneration over unchanged data yields the same batches.
	again, err := svc.Generate(ctx, testRun, "")
	require.NoError(t, err)
	assert.Equal(t, res.Batches, again.Batches)
}

func TestTTUMGenerate_RequiresClassifiedRun(t *testing.T) {
	f := newFixture(t)
	f.seed(t, txn("636397811101710", domain.SourceLedger, 1_230_000))
	svc := newTTUMService(f, testAccounts)

	_, err := svc.Generate(context.Background(), testRun, "")
	var stateErr *domain.RunStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, err.Error(), "classification must complete")
}

func TestTTUMGenerate_CycleScoped(t *testing.T) {
	f := newFixture(t)
	recs := append(declinedTriple("636397811101710", "C1"), declinedTriple("636397811101702", "C2")...)
	f.seed(t, recs...)
	classifyRun(t, f)
	svc := newTTUMService(f, testAccounts)
	ctx := context.Background()

	first, err := svc.Generate(ctx, testRun, "C1")
	require.NoError(t, err)
	require.Len(t, first.Batches, 1)

	settled, err := svc.MarkSettled(ctx, testRun)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	// Generating the second cycle must not disturb the first cycle's
	// batches or their settlement status.
	second, err := svc.Generate(ctx, testRun, "C2")
	require.NoError(t, err)
	require.Len(t, second.Batches, 1)

	batches, err := svc.List(ctx, testRun)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	byCycle := make(map[string]domain.TTUMBatch, len(batches))
	for _, b := range batches {
		byCycle[b.Cycle] = b
	}
	assert.Equal(t, domain.BatchStatusSettled, byCycle["C1"].Status)
	assert.Equal(t, domain.BatchStatusPending, byCycle["C2"].Status)

	// Regenerating one cycle replaces only its own batches.
	_, err = svc.Generate(ctx, testRun, "C2")
	require.NoError(t, err)
	batches, err = svc.List(ctx, testRun)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestTTUMGenerate_MissingMappingIsPartialFailure(t *testing.T) {
	f := newFixture(t)
	seedDeclined(t, f)
	svc := newTTUMService(f, ttum.Accounts{})
	ctx := context.Background()

	res, err := svc.Generate(ctx, testRun, "")
	require.NoError(t, err)
	assert.Empty(t, res.Batches)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0], "missing GL account mapping")

	// No batches were produced, so the run stays classified.
	run, err := f.store.GetRun(ctx, testRun)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusClassified, run.Status)
}

func TestTTUMSettleCycle(t *testing.T) {
	f := newFixture(t)
	seedDeclined(t, f)
	svc := newTTUMService(f, testAccounts)
	ctx := context.Background()

	_, err := svc.Generate(ctx, testRun, "")
	require.NoError(t, err)

	settled, err := svc.MarkSettled(ctx, testRun)
	require.NoError(t, err)
	assert.Equal(t, 1, settled)

	batches, err := svc.List(ctx, testRun)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, domain.BatchStatusSettled, batches[0].Status)

	// Settling again is a no-op.
	settled, err = svc.MarkSettled(ctx, testRun)
	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestTTUMList_UnknownRun(t *testing.T) {
	f := newFixture(t)
	svc := newTTUMService(f, testAccounts)
	_, err := svc.List(context.Background(), "RUN_MISSING")
	require.ErrorIs(t, err, domain.ErrRunNotFound)
}
