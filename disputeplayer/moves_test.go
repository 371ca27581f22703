package disputeplayer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollups-dave/node/merkle"
)

func TestPreferAggressiveMovePrefersDefenseWhenAhead(t *testing.T) {
	own := ClockState{Allowance: 100, StartInstant: 10, BlockNumber: 20}
	opponent := ClockState{Allowance: 50, StartInstant: 10, BlockNumber: 20}
	require.False(t, preferAggressiveMove(own, opponent))
}

func TestPreferAggressiveMovePrefersOffenseOnDeadOpponent(t *testing.T) {
	own := ClockState{Allowance: 100, StartInstant: 10, BlockNumber: 20}
	opponent := ClockState{Allowance: 5, StartInstant: 10, BlockNumber: 20}
	require.True(t, preferAggressiveMove(own, opponent))
}

func TestPreferAggressiveMoveSkipsDeadOwnClock(t *testing.T) {
	own := ClockState{Allowance: 5, StartInstant: 10, BlockNumber: 20}
	opponent := ClockState{Allowance: 100, StartInstant: 10, BlockNumber: 20}
	require.False(t, preferAggressiveMove(own, opponent))
}

func TestOpponentCommitmentReturnsTheOtherSide(t *testing.T) {
	one := merkle.FromData([]byte("one"))
	two := merkle.FromData([]byte("two"))
	m := &MatchState{ID: MatchID{CommitmentOne: one, CommitmentTwo: two}}

	require.Equal(t, two, opponentCommitment(m, one))
	require.Equal(t, one, opponentCommitment(m, two))
}
