// Package matching assigns a match state to every reference number by
// running the tiered rule cascade over the per-source observations.
package matching

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/settleops/recon-engine/internal/domain"
)

// Engine groups same-RRN records across sources and applies the cascade.
// It is a pure function of its input set plus the configured tolerance, so
// reruns over an unchanged canonical store are idempotent.
type Engine struct {
	tolerance domain.Tolerance
	workers   int
}

// Result carries the reconciliation records plus the per-record data-quality
// findings accumulated during grouping. Offending references are excluded
// from Records, never silently merged.
type Result struct {
	Records   []domain.ReconRecord
	Integrity []domain.DataQualityError
}

// New creates a matching engine. workers bounds the shard fan-out; values
// below 1 run single-shard.
func New(tolerance domain.Tolerance, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{tolerance: tolerance, workers: workers}
}

// Match evaluates the cascade for every reference group in recs. Records are
// sharded by RRN hash across the worker pool; output ordering is by RRN
// regardless of input order.
func (e *Engine) Match(ctx context.Context, cycle, direction string, recs []domain.TransactionRecord) (Result, error) {
	groups := make(map[string][]domain.TransactionRecord)
	for _, rec := range recs {
		groups[rec.RRN] = append(groups[rec.RRN], rec)
	}

	rrns := make([]string, 0, len(groups))
	for rrn := range groups {
		rrns = append(rrns, rrn)
	}

	shards := make([][]string, e.workers)
	for _, rrn := range rrns {
		h := fnv.New32a()
		h.Write([]byte(rrn))
		idx := int(h.Sum32()) % e.workers
		if idx < 0 {
			idx += e.workers
		}
		shards[idx] = append(shards[idx], rrn)
	}

	results := make([]Result, e.workers)
	var wg sync.WaitGroup
	for i, shard := range shards {
		if len(shard) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, shard []string) {
			defer wg.Done()
			for _, rrn := range shard {
				if ctx.Err() != nil {
					return
				}
				rec, dq := e.matchGroup(rrn, cycle, direction, groups[rrn])
				if dq != nil {
					results[i].Integrity = append(results[i].Integrity, *dq)
					continue
				}
				results[i].Records = append(results[i].Records, rec)
			}
		}(i, shard)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	var out Result
	for _, r := range results {
		out.Records = append(out.Records, r.Records...)
		out.Integrity = append(out.Integrity, r.Integrity...)
	}
	sort.Slice(out.Records, func(i, j int) bool { return out.Records[i].RRN < out.Records[j].RRN })
	sort.Slice(out.Integrity, func(i, j int) bool { return out.Integrity[i].RRN < out.Integrity[j].RRN })
	return out, nil
}

// matchGroup builds the ReconRecord for one reference and walks the cascade.
// A duplicate observation from the same source is a data-quality finding for
// the whole reference, except the ledger reversal-pair shape which the
// classifier needs intact.
func (e *Engine) matchGroup(rrn, cycle, direction string, group []domain.TransactionRecord) (domain.ReconRecord, *domain.DataQualityError) {
	rec := domain.ReconRecord{
		RRN:        rrn,
		Cycle:      cycle,
		Direction:  direction,
		MatchState: domain.MatchStateUnmatched,
	}

	for i := range group {
		obs := &group[i]
		switch obs.Source {
		case domain.SourceLedger:
			switch {
			case rec.Ledger == nil:
				rec.Ledger = obs
			case rec.LedgerReversal == nil && isReversalPair(rec.Ledger, obs):
				rec.LedgerReversal = obs
			default:
				return rec, &domain.DataQualityError{RRN: rrn, Source: obs.Source, Reason: "duplicate ledger record"}
			}
		case domain.SourceSwitch:
			if rec.Switch != nil {
				return rec, &domain.DataQualityError{RRN: rrn, Source: obs.Source, Reason: "duplicate switch record"}
			}
			rec.Switch = obs
		case domain.SourceNetwork:
			if rec.Network != nil {
				return rec, &domain.DataQualityError{RRN: rrn, Source: obs.Source, Reason: "duplicate network record"}
			}
			rec.Network = obs
		default:
			return rec, &domain.DataQualityError{RRN: rrn, Source: obs.Source, Reason: "unknown source system"}
		}
	}

	state, within := e.cascade(&rec)
	rec.WithinTolerance = within
	// The cascade only yields legal transitions out of UNMATCHED.
	_ = rec.Transition(state)
	return rec, nil
}

// cascade evaluates the tiers in order; the first satisfied tier wins.
func (e *Engine) cascade(rec *domain.ReconRecord) (state string, withinTolerance bool) {
	present := presentRecords(rec)

	switch len(present) {
	case 1:
		return domain.MatchStateOrphan, false

	case 2:
		a, b := present[0], present[1]
		if a.SameDay(*b) && a.AmountPaise == b.AmountPaise {
			return domain.MatchStatePartialMatch, false
		}
		return domain.MatchStatePartialMismatch, false

	case 3:
		l, s, n := rec.Ledger, rec.Switch, rec.Network
		datesAgree := l.SameDay(*s) && l.SameDay(*n)

		// Tier 1: exact three-way agreement at minor-unit precision.
		if datesAgree && l.AmountPaise == s.AmountPaise && l.AmountPaise == n.AmountPaise {
			return domain.MatchStateMatched, false
		}

		// Tier 2: relaxed amount comparison under the configured tolerance.
		if datesAgree &&
			e.tolerance.Within(l.AmountPaise, s.AmountPaise) &&
			e.tolerance.Within(l.AmountPaise, n.AmountPaise) &&
			e.tolerance.Within(s.AmountPaise, n.AmountPaise) {
			return domain.MatchStateMatched, true
		}

		// Two of three otherwise agree exactly.
		if pairAgrees(l, s) || pairAgrees(l, n) || pairAgrees(s, n) {
			return domain.MatchStatePartialMismatch, false
		}

		// Tier 5: all present, no pairwise agreement.
		return domain.MatchStateMismatch, false
	}

	return domain.MatchStateUnmatched, false
}

func presentRecords(rec *domain.ReconRecord) []*domain.TransactionRecord {
	var out []*domain.TransactionRecord
	for _, r := range []*domain.TransactionRecord{rec.Ledger, rec.Switch, rec.Network} {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

func pairAgrees(a, b *domain.TransactionRecord) bool {
	return a.SameDay(*b) && a.AmountPaise == b.AmountPaise
}

// isReversalPair reports whether second mirrors first with an opposite
// debit/credit sign and equal amount: either an automatic ledger reversal
// or a double debit/credit posting, both of which the classifier resolves.
func isReversalPair(first, second *domain.TransactionRecord) bool {
	if first.AmountPaise != second.AmountPaise {
		return false
	}
	return (first.DRC == domain.DRCDebit && second.DRC == domain.DRCCredit) ||
		(first.DRC == domain.DRCCredit && second.DRC == domain.DRCDebit)
}
