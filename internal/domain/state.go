package domain

import (
	"fmt"
	"strings"
)

// matchTransitions is the explicit match-state machine. UNMATCHED is initial;
// every automatic outcome is terminal for automatic processing and may only
// move forward via the manual FORCE_MATCHED transition or back to UNMATCHED
// through a rollback.
var matchTransitions = map[string]map[string]struct{}{
	MatchStateUnmatched: {
		MatchStateMatched:         {},
		MatchStatePartialMatch:    {},
		MatchStateMismatch:        {},
		MatchStatePartialMismatch: {},
		MatchStateOrphan:          {},
	},
	MatchStateMatched: {
		MatchStateUnmatched: {},
	},
	MatchStatePartialMatch: {
		MatchStateForceMatched: {},
		MatchStateUnmatched:    {},
	},
	MatchStateMismatch: {
		MatchStateForceMatched: {},
		MatchStateUnmatched:    {},
	},
	MatchStatePartialMismatch: {
		MatchStateForceMatched: {},
		MatchStateUnmatched:    {},
	},
	MatchStateOrphan: {
		MatchStateForceMatched: {},
		MatchStateUnmatched:    {},
	},
	MatchStateForceMatched: {
		MatchStateUnmatched: {},
	},
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

// CanTransition reports whether the match-state machine allows current -> next.
func CanTransition(current, next string) bool {
	nextStates, ok := matchTransitions[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

// Transition validates and applies a match-state change on the record.
func (r *ReconRecord) Transition(next string) error {
	if normalizeState(r.MatchState) == normalizeState(next) {
		return nil
	}
	if !CanTransition(r.MatchState, next) {
		return fmt.Errorf("invalid match state transition: %s -> %s", r.MatchState, next)
	}
	r.MatchState = normalizeState(next)
	return nil
}
