package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/engine/classify"
	"github.com/settleops/recon-engine/internal/engine/matching"
	"github.com/settleops/recon-engine/internal/observability"
	"github.com/settleops/recon-engine/internal/runlock"
	"github.com/settleops/recon-engine/internal/store"
)

// Coordinator is the thin orchestration over the matching engine and the
// classifier. It owns no state of its own; the run store is the single
// source of truth for what has been durably applied.
type Coordinator struct {
	store      store.RunStore
	locker     runlock.Locker
	matcher    *matching.Engine
	classifier *classify.Classifier
}

// NewCoordinator creates the run coordinator.
func NewCoordinator(st store.RunStore, locker runlock.Locker, matcher *matching.Engine, classifier *classify.Classifier) *Coordinator {
	return &Coordinator{store: st, locker: locker, matcher: matcher, classifier: classifier}
}

// RunResult is the external run-invocation response shape.
type RunResult struct {
	Status            string `json:"status"`
	RunID             string `json:"run_id"`
	OutputLocation    string `json:"output_location"`
	MatchedCount      int    `json:"matched_count"`
	UnmatchedCount    int    `json:"unmatched_count"`
	ExceptionCount    int    `json:"exception_count"`
	PartialMatchCount int    `json:"partial_match_count"`
	OrphanCount       int    `json:"orphan_count"`
	IntegrityCount    int    `json:"integrity_count"`
}

// Run matches and classifies the requested cycles of a run. cycle may be
// empty to process every cycle present in the canonical store. Commit is
// all-or-nothing per cycle; a failure mid-run aborts the run leaving any
// staged state for mid-recon rollback.
func (c *Coordinator) Run(ctx context.Context, runID, direction, cycle string) (RunResult, error) {
	if !domain.ValidDirection(direction) {
		return RunResult{}, fmt.Errorf("invalid direction %q", direction)
	}

	var requested []string
	if cycle != "" {
		requested = []string{cycle}
	}
	run, err := c.store.EnsureRun(ctx, runID, direction, requested)
	if err != nil {
		return RunResult{}, err
	}

	release, err := c.locker.Acquire(ctx, runID)
	if err != nil {
		observability.IncrementRun("conflict")
		return RunResult{}, err
	}
	defer release()

	if err := c.store.SetRunStatus(ctx, runID, domain.RunStatusRunning); err != nil {
		return RunResult{}, err
	}

	cycles := requested
	if len(cycles) == 0 {
		cycles, err = c.store.Cycles(ctx, runID)
		if err != nil {
			return RunResult{}, c.abort(ctx, runID, fmt.Errorf("list cycles: %w", err))
		}
	}

	var integrity []domain.DataQualityError
	var classified []domain.ReconRecord
	for _, cyc := range cycles {
		records, err := c.store.Records(ctx, runID, cyc)
		if err != nil {
			return RunResult{}, c.abort(ctx, runID, fmt.Errorf("read canonical records: %w", err))
		}
		if len(records) == 0 {
			continue
		}

		result, err := c.matcher.Match(ctx, cyc, direction, records)
		if err != nil {
			return RunResult{}, c.abort(ctx, runID, fmt.Errorf("match cycle %s: %w", cyc, err))
		}
		integrity = append(integrity, result.Integrity...)

		recs, dq := c.classifyAll(result.Records)
		integrity = append(integrity, dq...)

		if err := c.store.StageCycle(ctx, runID, cyc, recs); err != nil {
			return RunResult{}, c.abort(ctx, runID, fmt.Errorf("stage cycle %s: %w", cyc, err))
		}
		if err := c.store.CommitCycle(ctx, runID, cyc); err != nil {
			return RunResult{}, c.abort(ctx, runID, fmt.Errorf("commit cycle %s: %w", cyc, err))
		}
		classified = append(classified, recs...)
	}

	if len(classified) == 0 && len(integrity) == 0 {
		observability.IncrementRun("empty")
		return RunResult{}, fmt.Errorf("run %s: %w", runID, domain.ErrNoRecords)
	}

	if err := c.store.SetIntegrityErrors(ctx, runID, integrity); err != nil {
		return RunResult{}, c.abort(ctx, runID, err)
	}
	if err := c.store.SetRunStatus(ctx, runID, domain.RunStatusClassified); err != nil {
		return RunResult{}, err
	}

	res := tally(runID, classified)
	res.IntegrityCount = len(integrity)
	observability.IncrementRun("classified")
	observability.IncrementIntegrityErrors(len(integrity))
	zap.L().Info("run classified",
		zap.String("run_id", runID),
		zap.String("direction", run.Direction),
		zap.Strings("cycles", cycles),
		zap.Int("matched", res.MatchedCount),
		zap.Int("unmatched", res.UnmatchedCount),
		zap.Int("integrity", res.IntegrityCount),
	)
	return res, nil
}

// classifyAll assigns exceptions to every non-matched record. Classification
// failures are data-quality findings; the offending reference is excluded
// rather than aborting the run.
func (c *Coordinator) classifyAll(recs []domain.ReconRecord) ([]domain.ReconRecord, []domain.DataQualityError) {
	out := make([]domain.ReconRecord, 0, len(recs))
	var dq []domain.DataQualityError
	for _, rec := range recs {
		observability.IncrementMatchState(rec.MatchState)
		if rec.MatchState == domain.MatchStateMatched {
			out = append(out, rec)
			continue
		}
		exc, err := c.classifier.Classify(&rec)
		if err != nil {
			dq = append(dq, domain.DataQualityError{RRN: rec.RRN, Reason: err.Error()})
			continue
		}
		rec.Exception = exc
		observability.IncrementException(exc)
		out = append(out, rec)
	}
	return out, dq
}

func (c *Coordinator) abort(ctx context.Context, runID string, cause error) error {
	if err := c.store.SetRunStatus(ctx, runID, domain.RunStatusAborted); err != nil {
		zap.L().Error("mark run aborted", zap.String("run_id", runID), zap.Error(err))
	}
	observability.IncrementRun("aborted")
	return fmt.Errorf("run %s aborted: %w", runID, cause)
}

func tally(runID string, recs []domain.ReconRecord) RunResult {
	res := RunResult{
		Status:         domain.RunStatusClassified,
		RunID:          runID,
		OutputLocation: fmt.Sprintf("runs/%s", runID),
	}
	for _, rec := range recs {
		switch rec.MatchState {
		case domain.MatchStateMatched, domain.MatchStateForceMatched:
			res.MatchedCount++
		default:
			res.UnmatchedCount++
		}
		switch rec.MatchState {
		case domain.MatchStatePartialMatch:
			res.PartialMatchCount++
		case domain.MatchStateOrphan:
			res.OrphanCount++
		}
		if rec.Exception != "" {
			res.ExceptionCount++
		}
	}
	return res
}

// ReclassifyHanging re-runs classification for committed HANGING records
// whose cut-off window has since lapsed. Runs locked by another mutating
// operation are skipped and picked up on the next sweep.
func (c *Coordinator) ReclassifyHanging(ctx context.Context) (int, error) {
	runIDs, err := c.store.RunIDs(ctx)
	if err != nil {
		return 0, err
	}
	resolved := 0
	for _, runID := range runIDs {
		n, err := c.reclassifyRun(ctx, runID)
		if err != nil {
			if errors.Is(err, domain.ErrRunConflict) {
				continue
			}
			return resolved, err
		}
		resolved += n
	}
	return resolved, nil
}

func (c *Coordinator) reclassifyRun(ctx context.Context, runID string) (int, error) {
	recs, err := c.store.ReconRecords(ctx, runID, "")
	if err != nil {
		return 0, err
	}
	var hanging []domain.ReconRecord
	for _, rec := range recs {
		if rec.Exception == domain.ExceptionHanging {
			hanging = append(hanging, rec)
		}
	}
	if len(hanging) == 0 {
		return 0, nil
	}

	release, err := c.locker.Acquire(ctx, runID)
	if err != nil {
		return 0, err
	}
	defer release()

	resolved := 0
	for _, rec := range hanging {
		exc, err := c.classifier.Classify(&rec)
		if err != nil || exc == domain.ExceptionHanging {
			continue
		}
		rec.Exception = exc
		if err := c.store.PutReconRecord(ctx, runID, rec); err != nil {
			return resolved, err
		}
		observability.IncrementException(exc)
		resolved++
	}
	return resolved, nil
}
