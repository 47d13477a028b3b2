package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/engine/classify"
	"github.com/settleops/recon-engine/internal/engine/matching"
	"github.com/settleops/recon-engine/internal/runlock"
	"github.com/settleops/recon-engine/internal/service"
	"github.com/settleops/recon-engine/internal/store"
)

func TestHangingSweep_ResolvesLapsedRecords(t *testing.T) {
	txnDay := time.Date(2026, 1, 13, 10, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	now := txnDay.Add(2 * time.Hour)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	setNow := func(t time.Time) {
		mu.Lock()
		now = t
		mu.Unlock()
	}

	st := store.NewMemoryStore()
	coordinator := service.NewCoordinator(
		st,
		runlock.NewMemory(),
		matching.New(domain.ZeroTolerance, 1),
		classify.New(24*time.Hour, clock),
	)
	ctx := context.Background()

	_, err := st.EnsureRun(ctx, "RUN1", domain.DirectionOutward, nil)
	require.NoError(t, err)
	require.NoError(t, st.AddRecords(ctx, "RUN1", []domain.TransactionRecord{
		{RRN: "100000000000001", Source: domain.SourceLedger, AmountPaise: 100, TxnDate: txnDay, DRC: "D", ResponseCode: "00", Cycle: "C1"},
	}))
	_, err = coordinator.Run(ctx, "RUN1", domain.DirectionOutward, "")
	require.NoError(t, err)

	w := NewHangingSweepWorker(coordinator).WithInterval(10 * time.Millisecond)
	stop := w.Run(ctx)
	defer stop()

	// Window still open: the record stays HANGING.
	time.Sleep(50 * time.Millisecond)
	recs, err := st.ReconRecords(ctx, "RUN1", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.ExceptionHanging, recs[0].Exception)

	// Move past the window and wait for a sweep.
	setNow(txnDay.Add(48 * time.Hour))
	require.Eventually(t, func() bool {
		recs, err := st.ReconRecords(ctx, "RUN1", "")
		return err == nil && len(recs) == 1 && recs[0].Exception == domain.ExceptionOrphan
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHangingSweep_StopIsIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	coordinator := service.NewCoordinator(
		st,
		runlock.NewMemory(),
		matching.New(domain.ZeroTolerance, 1),
		classify.New(24*time.Hour, nil),
	)

	w := NewHangingSweepWorker(coordinator).WithInterval(time.Hour)
	stop := w.Run(context.Background())
	stop()
	stop()
	w.Stop()
}
