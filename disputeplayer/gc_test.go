package disputeplayer

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/rollups-dave/node/merkle"
)

type fakeArenaSender struct {
	eliminatedMatches     []MatchID
	eliminatedTournaments []common.Address
}

func (f *fakeArenaSender) EliminateMatch(ctx context.Context, tournament common.Address, id MatchID) error {
	f.eliminatedMatches = append(f.eliminatedMatches, id)
	return nil
}

func (f *fakeArenaSender) EliminateInnerTournament(ctx context.Context, tournament, child common.Address) error {
	f.eliminatedTournaments = append(f.eliminatedTournaments, child)
	return nil
}

func TestGarbageCollectorEliminatesTimedOutMatch(t *testing.T) {
	root := common.HexToAddress("0x1")
	one := merkle.FromData([]byte("one"))
	two := merkle.FromData([]byte("two"))

	state := NewRootTournamentState(root)
	state.CommitmentStates[one] = &CommitmentState{Clock: ClockState{Allowance: 100, StartInstant: 0, BlockNumber: 0}}
	// two's clock has a 10-block allowance and deadline 11; at block
	// 200 it is 189 blocks past timeout, well over one's 100-block
	// allowance.
	state.CommitmentStates[two] = &CommitmentState{Clock: ClockState{Allowance: 10, StartInstant: 1, BlockNumber: 200}}
	state.Matches = []*MatchState{{ID: MatchID{CommitmentOne: one, CommitmentTwo: two}}}

	sender := &fakeArenaSender{}
	gc := NewGarbageCollector(sender, root)
	require.NoError(t, gc.React(context.Background(), TournamentStateMap{root: state}))

	require.Len(t, sender.eliminatedMatches, 1)
	require.Equal(t, one, sender.eliminatedMatches[0].CommitmentOne)
}

func TestGarbageCollectorSparesMatchWithinAllowance(t *testing.T) {
	root := common.HexToAddress("0x1")
	one := merkle.FromData([]byte("one"))
	two := merkle.FromData([]byte("two"))

	state := NewRootTournamentState(root)
	state.CommitmentStates[one] = &CommitmentState{Clock: ClockState{Allowance: 100, StartInstant: 0, BlockNumber: 0}}
	state.CommitmentStates[two] = &CommitmentState{Clock: ClockState{Allowance: 1000, StartInstant: 1, BlockNumber: 5}}
	state.Matches = []*MatchState{{ID: MatchID{CommitmentOne: one, CommitmentTwo: two}}}

	sender := &fakeArenaSender{}
	gc := NewGarbageCollector(sender, root)
	require.NoError(t, gc.React(context.Background(), TournamentStateMap{root: state}))

	require.Empty(t, sender.eliminatedMatches)
}

func TestGarbageCollectorEliminatesDecidedInnerTournament(t *testing.T) {
	root := common.HexToAddress("0x1")
	inner := common.HexToAddress("0x2")
	one := merkle.FromData([]byte("one"))
	two := merkle.FromData([]byte("two"))

	rootState := NewRootTournamentState(root)
	rootState.CommitmentStates[one] = &CommitmentState{Clock: ClockState{Allowance: 100, StartInstant: 1, BlockNumber: 5}}
	rootState.CommitmentStates[two] = &CommitmentState{Clock: ClockState{Allowance: 100, StartInstant: 1, BlockNumber: 5}}
	rootState.Matches = []*MatchState{{ID: MatchID{CommitmentOne: one, CommitmentTwo: two}, InnerTournament: &inner}}

	innerState := NewInnerTournamentState(inner, 0, 0, root)
	innerState.Winner = &TournamentWinner{Left: one, Right: two}

	sender := &fakeArenaSender{}
	gc := NewGarbageCollector(sender, root)
	states := TournamentStateMap{root: rootState, inner: innerState}
	require.NoError(t, gc.React(context.Background(), states))

	require.Equal(t, []common.Address{inner}, sender.eliminatedTournaments)
}
