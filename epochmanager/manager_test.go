package epochmanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rollups-dave/node/merkle"
	"github.com/rollups-dave/node/statestore"
)

func openTestStore(t *testing.T) *statestore.Store {
	t.Helper()
	st, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background(), 0, nil))
	return st
}

// With no local settlement recorded, SettlementInfo reports nil — the
// condition under which tick() returns without sending settle().
func TestSettlementInfoIsNilBeforeLocalSettlement(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertConsensusData(1, nil, []statestore.Epoch{{EpochNumber: 0, RootTournament: "0xabc"}}))

	settlement, err := st.SettlementInfo(0)
	require.NoError(t, err)
	require.Nil(t, settlement)
}

// Once a local settlement exists, it is readable by epoch number —
// the precondition tick() checks before sending settle().
func TestSettlementBecomesReadableAfterInsert(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.InsertConsensusData(1, nil, []statestore.Epoch{{EpochNumber: 0, RootTournament: "0xabc"}}))

	s := statestore.Settlement{ComputationHash: merkle.FromData([]byte("c")), OutputMerkle: merkle.FromData([]byte("o"))}
	require.NoError(t, st.InsertSettlement(0, s))

	got, err := st.SettlementInfo(0)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, s.ComputationHash, got.ComputationHash)

	m := New(nil, st, nil, time.Millisecond)
	require.NotNil(t, m)
}
