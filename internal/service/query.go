package service

import (
	"context"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/store"
)

// QueryService serves the read-only report contract. Reads use the last
// committed snapshot and never block an in-flight run.
type QueryService struct {
	store store.RunStore
}

// NewQueryService creates the query service.
func NewQueryService(st store.RunStore) *QueryService {
	return &QueryService{store: st}
}

// Summary returns count/amount rollups per summary bucket.
func (s *QueryService) Summary(ctx context.Context, runID string) (domain.Summary, error) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		return domain.Summary{}, err
	}
	recs, err := s.store.ReconRecords(ctx, runID, "")
	if err != nil {
		return domain.Summary{}, err
	}
	integrity, err := s.store.IntegrityErrors(ctx, runID)
	if err != nil {
		return domain.Summary{}, err
	}

	var totals, matched, unmatched, hanging, exceptions rollup
	for _, rec := range recs {
		amount := rec.Amount()
		totals.add(amount)
		switch rec.MatchState {
		case domain.MatchStateMatched, domain.MatchStateForceMatched:
			matched.add(amount)
		default:
			unmatched.add(amount)
		}
		switch {
		case rec.Exception == domain.ExceptionHanging:
			hanging.add(amount)
		case rec.Exception != "":
			exceptions.add(amount)
		}
	}

	return domain.Summary{
		RunID:      runID,
		Totals:     totals.bucket(),
		Matched:    matched.bucket(),
		Unmatched:  unmatched.bucket(),
		Hanging:    hanging.bucket(),
		Exceptions: exceptions.bucket(),
		Integrity:  domain.Bucket{Count: len(integrity), Amount: domain.NewMoney(0).String()},
		Status:     run.Status,
	}, nil
}

// Records returns the committed classification snapshot, per reference
// number, with the per-source sub-records.
func (s *QueryService) Records(ctx context.Context, runID, cycle string) ([]domain.ReconRecord, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.ReconRecords(ctx, runID, cycle)
}

// Cycles lists the cycle identifiers present in a run's output location.
func (s *QueryService) Cycles(ctx context.Context, runID string) ([]string, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.Cycles(ctx, runID)
}

// IntegrityErrors lists the run's per-record data-quality findings.
func (s *QueryService) IntegrityErrors(ctx context.Context, runID string) ([]domain.DataQualityError, error) {
	if _, err := s.store.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.store.IntegrityErrors(ctx, runID)
}

type rollup struct {
	count int
	paise int64
}

func (r *rollup) add(paise int64) {
	r.count++
	r.paise += paise
}

func (r rollup) bucket() domain.Bucket {
	return domain.Bucket{Count: r.count, Amount: domain.NewMoney(r.paise).String()}
}
