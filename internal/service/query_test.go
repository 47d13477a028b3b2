package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
)

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		// Matched: ₹12,300.00.
		txn("636397811101710", domain.SourceLedger, 1_230_000),
		txn("636397811101710", domain.SourceSwitch, 1_230_000),
		txn("636397811101710", domain.SourceNetwork, 1_230_000),
		// Orphan exception: ₹5.00.
		txn("100000000000001", domain.SourceLedger, 500),
	)
	classifyRun(t, f)

	summary, err := f.queries.Summary(context.Background(), testRun)
	require.NoError(t, err)
	assert.Equal(t, testRun, summary.RunID)
	assert.Equal(t, domain.RunStatusClassified, summary.Status)

	assert.Equal(t, 2, summary.Totals.Count)
	assert.Equal(t, "12305.00", summary.Totals.Amount)
	assert.Equal(t, 1, summary.Matched.Count)
	assert.Equal(t, "12300.00", summary.Matched.Amount)
	assert.Equal(t, 1, summary.Unmatched.Count)
	assert.Equal(t, "5.00", summary.Unmatched.Amount)
	assert.Equal(t, 1, summary.Exceptions.Count)
	assert.Zero(t, summary.Hanging.Count)
	assert.Zero(t, summary.Integrity.Count)
}

func TestSummary_ForceMatchedCountsAsMatched(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		txn("636397811101710", domain.SourceLedger, 1_230_000),
		txn("636397811101710", domain.SourceSwitch, 999_999),
	)
	classifyRun(t, f)
	ctx := context.Background()

	_, err := f.coordinator.ForceMatch(ctx, testRun, ForceMatchRequest{
		Reference: "636397811101710",
		SourceA:   domain.SourceLedger,
		SourceB:   domain.SourceSwitch,
	})
	require.NoError(t, err)

	summary, err := f.queries.Summary(ctx, testRun)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched.Count)
	assert.Zero(t, summary.Unmatched.Count)
	assert.Zero(t, summary.Exceptions.Count)
}

func TestRecordsQuery_PerSourceSubRecords(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		txn("636397811101710", domain.SourceLedger, 1_230_000),
		txn("636397811101710", domain.SourceSwitch, 1_230_000),
	)
	classifyRun(t, f)

	recs, err := f.queries.Records(context.Background(), testRun, "C1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotNil(t, recs[0].Ledger)
	assert.NotNil(t, recs[0].Switch)
	assert.Nil(t, recs[0].Network)
	assert.Equal(t, domain.MatchStatePartialMatch, recs[0].MatchState)
}

func TestCyclesQuery(t *testing.T) {
	f := newFixture(t)
	c2 := txn("200000000000002", domain.SourceLedger, 200)
	c2.Cycle = "C2"
	f.seed(t, txn("100000000000001", domain.SourceLedger, 100), c2)

	cycles, err := f.queries.Cycles(context.Background(), testRun)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1", "C2"}, cycles)
}

func TestQueries_UnknownRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.queries.Summary(ctx, "RUN_MISSING")
	require.ErrorIs(t, err, domain.ErrRunNotFound)
	_, err = f.queries.Records(ctx, "RUN_MISSING", "")
	require.ErrorIs(t, err, domain.ErrRunNotFound)
	_, err = f.queries.Cycles(ctx, "RUN_MISSING")
	require.ErrorIs(t, err, domain.ErrRunNotFound)
	_, err = f.queries.IntegrityErrors(ctx, "RUN_MISSING")
	require.ErrorIs(t, err, domain.ErrRunNotFound)
}
