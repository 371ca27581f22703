package machinerunner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rollups-dave/node/machine"
	"github.com/rollups-dave/node/statestore"
)

func openTestRunner(t *testing.T) (*Runner, *statestore.Store, *machine.Fake) {
	t.Helper()
	dir := t.TempDir()
	st, err := statestore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background(), 0, nil))

	f := machine.NewFake()
	yieldAt := uint64(5)
	f.YieldAtMCycle = &yieldAt
	_, _ = f.Run(context.Background(), 0) // runs to cycle 0 without yielding; the yield comes at cycle 5

	return New(st, f, time.Millisecond, time.Hour), st, f
}

func TestProcessInputProducesPaddedLeafTrace(t *testing.T) {
	r, _, f := openTestRunner(t)

	leafs, accepted, err := r.processInput(context.Background(), []byte("payload"))
	require.NoError(t, err)
	require.True(t, accepted)
	require.Len(t, leafs, 2)
	require.Equal(t, uint64(1), leafs[0].Repetitions)
	require.Equal(t, strideCountInInput-1, leafs[1].Repetitions)

	yielded, err := f.IsYielded(context.Background())
	require.NoError(t, err)
	require.True(t, yielded)
}

func TestAdvanceAvailableInputsFeedsEachRecordedInput(t *testing.T) {
	r, st, _ := openTestRunner(t)
	ctx := context.Background()

	require.NoError(t, st.InsertConsensusData(1, []statestore.Input{
		{ID: statestore.InputID{EpochNumber: 0, InputIndexInEpoch: 0}, Data: []byte("i0")},
	}, []statestore.Epoch{{EpochNumber: 0, InputIndexBoundary: 1, RootTournament: "0xabc"}}))

	require.NoError(t, r.advanceAvailableInputs(ctx))
	require.NotNil(t, r.current)
	require.Equal(t, statestore.InputID{EpochNumber: 0, InputIndexInEpoch: 0}, *r.current)

	_, ok, err := st.SnapshotDir(statestore.InputID{EpochNumber: 0, InputIndexInEpoch: 0})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, r.rollEpochIfComplete(ctx))
	settlement, err := st.SettlementInfo(0)
	require.NoError(t, err)
	require.NotNil(t, settlement)
}
