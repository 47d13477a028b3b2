package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(MatchStateUnmatched, MatchStateMatched))
	assert.True(t, CanTransition(MatchStateUnmatched, MatchStateOrphan))
	assert.True(t, CanTransition(MatchStateMismatch, MatchStateForceMatched))
	assert.True(t, CanTransition(MatchStateForceMatched, MatchStateUnmatched))

	// Automatic outcomes never move between each other.
	assert.False(t, CanTransition(MatchStateOrphan, MatchStateMatched))
	assert.False(t, CanTransition(MatchStateMatched, MatchStateMismatch))
	// A full match is never force-matched.
	assert.False(t, CanTransition(MatchStateMatched, MatchStateForceMatched))
	assert.False(t, CanTransition(MatchStateUnmatched, MatchStateForceMatched))
}

func TestReconRecord_Transition(t *testing.T) {
	rec := ReconRecord{MatchState: MatchStateUnmatched}
	require.NoError(t, rec.Transition(MatchStateMismatch))
	assert.Equal(t, MatchStateMismatch, rec.MatchState)

	err := rec.Transition(MatchStateMatched)
	require.Error(t, err)
	assert.Equal(t, MatchStateMismatch, rec.MatchState)

	// Same-state transition is a no-op.
	require.NoError(t, rec.Transition(MatchStateMismatch))
}

func TestReconRecord_Transition_CaseInsensitive(t *testing.T) {
	rec := ReconRecord{MatchState: "unmatched"}
	require.NoError(t, rec.Transition("orphan"))
	assert.Equal(t, MatchStateOrphan, rec.MatchState)
}
