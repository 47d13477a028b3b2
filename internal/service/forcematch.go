package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/domain"
	"github.com/settleops/recon-engine/internal/observability"
)

// ForceMatchRequest is the manual override input. SourceA supplies the
// authoritative reference values.
type ForceMatchRequest struct {
	Reference string `json:"reference"`
	SourceA   string `json:"source_a"`
	SourceB   string `json:"source_b"`
	Action    string `json:"action"`
	Actor     string `json:"actor,omitempty"`
}

// ForceMatchResult is the external force-match response shape.
type ForceMatchResult struct {
	Status    string `json:"status"`
	Action    string `json:"action"`
	Reference string `json:"reference"`
}

// ForceMatch applies the manual FORCE_MATCHED transition using source A's
// data as the reference value. Rejected when both sources are the same.
func (c *Coordinator) ForceMatch(ctx context.Context, runID string, req ForceMatchRequest) (ForceMatchResult, error) {
	if req.SourceA == req.SourceB {
		return ForceMatchResult{}, domain.ErrSameSource
	}
	if !domain.ValidSource(req.SourceA) || !domain.ValidSource(req.SourceB) {
		return ForceMatchResult{}, fmt.Errorf("unknown source in force-match request")
	}

	release, err := c.locker.Acquire(ctx, runID)
	if err != nil {
		return ForceMatchResult{}, err
	}
	defer release()

	rec, err := c.store.GetReconRecord(ctx, runID, req.Reference)
	if err != nil {
		return ForceMatchResult{}, err
	}
	if rec.Record(req.SourceA) == nil {
		return ForceMatchResult{}, fmt.Errorf("reference %s has no %s record to force-match from", req.Reference, req.SourceA)
	}

	if err := rec.Transition(domain.MatchStateForceMatched); err != nil {
		return ForceMatchResult{}, err
	}
	rec.Exception = ""
	rec.ForcedSource = req.SourceA
	rec.ForcedBy = req.Actor
	if err := c.store.PutReconRecord(ctx, runID, rec); err != nil {
		return ForceMatchResult{}, err
	}

	observability.IncrementMatchState(domain.MatchStateForceMatched)
	zap.L().Info("force match applied",
		zap.String("run_id", runID),
		zap.String("reference", req.Reference),
		zap.String("source_a", req.SourceA),
		zap.String("source_b", req.SourceB),
		zap.String("actor", req.Actor),
	)
	return ForceMatchResult{Status: "success", Action: req.Action, Reference: req.Reference}, nil
}
