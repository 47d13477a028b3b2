package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/engine/classify"
	"github.com/settleops/recon-engine/internal/engine/matching"
	"github.com/settleops/recon-engine/internal/runlock"
	"github.com/settleops/recon-engine/internal/store"
)

const testRun = "RUN_20260105_160947"

var (
	txnDay   = time.Date(2026, 1, 13, 10, 0, 0, 0, time.UTC)
	fixedNow = func() time.Time { return txnDay.Add(48 * time.Hour) }
)

type fixture struct {
	store       *store.MemoryStore
	locker      *runlock.Memory
	coordinator *Coordinator
	queries     *QueryService
	ingest      *IngestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	locker := runlock.NewMemory()
	matcher := matching.New(domain.ZeroTolerance, 4)
	classifier := classify.New(24*time.Hour, fixedNow)
	return &fixture{
		store:       st,
		locker:      locker,
		coordinator: NewCoordinator(st, locker, matcher, classifier),
		queries:     NewQueryService(st),
		ingest:      NewIngestService(st),
	}
}

func (f *fixture) seed(t *testing.T, recs ...domain.TransactionRecord) {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.EnsureRun(ctx, testRun, domain.DirectionOutward, nil)
	require.NoError(t, err)
	require.NoError(t, f.store.AddRecords(ctx, testRun, recs))
}

// newClassifierAt builds a classifier whose clock follows *now, letting a
// test move time forward between sweeps.
func newClassifierAt(now *time.Time) *classify.Classifier {
	return classify.New(24*time.Hour, func() time.Time { return *now })
}

func txn(rrn, source string, paise int64) domain.TransactionRecord {
	return domain.TransactionRecord{
		RRN:          rrn,
		Source:       source,
		AmountPaise:  paise,
		TxnDate:      txnDay,
		DRC:          domain.DRCDebit,
		ResponseCode: "00",
		TxnType:      domain.TxnTypePayment,
		Direction:    domain.DirectionOutward,
		Cycle:        "C1",
		Account:      "CUST-001",
		SourceFile:   "cbs_inward_20260105.csv",
	}
}
