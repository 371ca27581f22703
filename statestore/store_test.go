package statestore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollups-dave/node/machine"
	"github.com/rollups-dave/node/merkle"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Migrate(context.Background(), 10, nil))
	return st
}

func TestMigrateSetsGenesisBlock(t *testing.T) {
	st := openTestStore(t)
	block, err := st.LatestProcessedBlock()
	require.NoError(t, err)
	require.Equal(t, uint64(10), block)
}

// I2: last-processed block only moves forward.
func TestInsertConsensusDataRejectsRegression(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertConsensusData(20, nil, nil))

	err := st.InsertConsensusData(15, nil, nil)
	require.ErrorIs(t, err, ErrInconsistentLastProcessed)
}

// I1: inputs must be contiguous within an epoch or start a new epoch at 0.
func TestInsertConsensusDataEnforcesContiguity(t *testing.T) {
	st := openTestStore(t)

	err := st.InsertConsensusData(11, []Input{
		{ID: InputID{EpochNumber: 0, InputIndexInEpoch: 1}, Data: []byte("a")},
	}, nil)
	require.ErrorIs(t, err, ErrInconsistentInput)

	require.NoError(t, st.InsertConsensusData(11, []Input{
		{ID: InputID{EpochNumber: 0, InputIndexInEpoch: 0}, Data: []byte("a")},
	}, nil))

	err = st.InsertConsensusData(12, []Input{
		{ID: InputID{EpochNumber: 0, InputIndexInEpoch: 2}, Data: []byte("b")},
	}, nil)
	require.ErrorIs(t, err, ErrInconsistentInput)

	require.NoError(t, st.InsertConsensusData(12, []Input{
		{ID: InputID{EpochNumber: 0, InputIndexInEpoch: 1}, Data: []byte("b")},
	}, nil))
}

// I3: snapshots are content-addressed; storing the same state twice
// reuses one directory and doesn't error.
func TestAdvanceAcceptedIsContentAddressed(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	f := machine.NewFake()
	f.WriteMemory(0, []byte("same state"))

	require.NoError(t, st.AdvanceAccepted(ctx, InputID{EpochNumber: 0, InputIndexInEpoch: 1}, f, nil))
	dir1, ok, err := st.SnapshotDir(InputID{EpochNumber: 0, InputIndexInEpoch: 1})
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, st.AdvanceAccepted(ctx, InputID{EpochNumber: 0, InputIndexInEpoch: 2}, f, nil))
	dir2, ok, err := st.SnapshotDir(InputID{EpochNumber: 0, InputIndexInEpoch: 2})
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, filepath.Dir(dir1), filepath.Dir(dir2))
	require.Equal(t, dir1, dir2)
}

// I7: at most one settlement per epoch.
func TestInsertSettlementRejectsDuplicate(t *testing.T) {
	st := openTestStore(t)
	s := Settlement{ComputationHash: merkle.FromData([]byte("c")), OutputMerkle: merkle.FromData([]byte("o"))}

	require.NoError(t, st.InsertConsensusData(10, nil, []Epoch{{EpochNumber: 0, RootTournament: "0xabc"}}))
	require.NoError(t, st.InsertSettlement(0, s))

	err := st.InsertSettlement(0, s)
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

// E6: consensus-data ingestion preserves contiguity across a batch and
// is visible to subsequent reads.
func TestStateStoreIngestionContiguity(t *testing.T) {
	st := openTestStore(t)

	inputs := []Input{
		{ID: InputID{EpochNumber: 0, InputIndexInEpoch: 0}, Data: []byte("i0")},
		{ID: InputID{EpochNumber: 0, InputIndexInEpoch: 1}, Data: []byte("i1")},
		{ID: InputID{EpochNumber: 1, InputIndexInEpoch: 0}, Data: []byte("i2")},
	}
	epochs := []Epoch{
		{EpochNumber: 0, InputIndexBoundary: 2, RootTournament: "0x1"},
		{EpochNumber: 1, InputIndexBoundary: 1, RootTournament: "0x2"},
	}
	require.NoError(t, st.InsertConsensusData(50, inputs, epochs))

	count, err := st.EpochCount()
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	last, err := st.LastInput()
	require.NoError(t, err)
	require.Equal(t, InputID{EpochNumber: 1, InputIndexInEpoch: 0}, *last)

	got, err := st.Inputs(0)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("i0"), []byte("i1")}, got)
}
