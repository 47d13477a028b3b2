package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
)

func classifyRun(t *testing.T, f *fixture) {
	t.Helper()
	_, err := f.coordinator.Run(context.Background(), testRun, domain.DirectionOutward, "")
	require.NoError(t, err)
}

func TestForceMatch(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		txn("636397811101710", domain.SourceLedger, 1_230_000),
		txn("636397811101710", domain.SourceSwitch, 999_999),
	)
	classifyRun(t, f)
	ctx := context.Background()

	res, err := f.coordinator.ForceMatch(ctx, testRun, ForceMatchRequest{
		Reference: "636397811101710",
		SourceA:   domain.SourceLedger,
		SourceB:   domain.SourceSwitch,
		Action:    "force_match",
		Actor:     "ops-user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)

	rec, err := f.store.GetReconRecord(ctx, testRun, "636397811101710")
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStateForceMatched, rec.MatchState)
	assert.Empty(t, rec.Exception)
	assert.Equal(t, domain.SourceLedger, rec.ForcedSource)
	assert.Equal(t, "ops-user-1", rec.ForcedBy)
}

func TestForceMatch_NonLedgerReferenceAmount(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		txn("636397811101710", domain.SourceLedger, 100_000),
		txn("636397811101710", domain.SourceSwitch, 999_900),
	)
	classifyRun(t, f)
	ctx := context.Background()

	_, err := f.coordinator.ForceMatch(ctx, testRun, ForceMatchRequest{
		Reference: "636397811101710",
		SourceA:   domain.SourceSwitch,
		SourceB:   domain.SourceLedger,
		Action:    "force_match",
		Actor:     "ops-user-1",
	})
	require.NoError(t, err)

	// The designated source supplies the reference amount, not the ledger.
	summary, err := f.queries.Summary(ctx, testRun)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Matched.Count)
	assert.Equal(t, "9999.00", summary.Matched.Amount)
}

func TestForceMatch_SameSourceRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.ForceMatch(context.Background(), testRun, ForceMatchRequest{
		Reference: "636397811101710",
		SourceA:   domain.SourceLedger,
		SourceB:   domain.SourceLedger,
	})
	require.ErrorIs(t, err, domain.ErrSameSource)
}

func TestForceMatch_UnknownSource(t *testing.T) {
	f := newFixture(t)
	_, err := f.coordinator.ForceMatch(context.Background(), testRun, ForceMatchRequest{
		Reference: "636397811101710",
		SourceA:   "cbs",
		SourceB:   domain.SourceSwitch,
	})
	require.Error(t, err)
}

func TestForceMatch_ReferenceSourceMustBePresent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, txn("636397811101710", domain.SourceSwitch, 1_230_000))
	classifyRun(t, f)

	_, err := f.coordinator.ForceMatch(context.Background(), testRun, ForceMatchRequest{
		Reference: "636397811101710",
		SourceA:   domain.SourceLedger,
		SourceB:   domain.SourceSwitch,
	})
	require.Error(t, err)
}

func TestForceMatch_FullMatchRejected(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		txn("636397811101710", domain.SourceLedger, 1_230_000),
		txn("636397811101710", domain.SourceSwitch, 1_230_000),
		txn("636397811101710", domain.SourceNetwork, 1_230_000),
	)
	classifyRun(t, f)

	_, err := f.coordinator.ForceMatch(context.Background(), testRun, ForceMatchRequest{
		Reference: "636397811101710",
		SourceA:   domain.SourceLedger,
		SourceB:   domain.SourceSwitch,
	})
	require.Error(t, err)
}
