package machine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollups-dave/node/merkle"
)

func TestFakeStoreLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	snapshotPath := filepath.Join(dir, "snap")

	f := NewFake()
	f.WriteMemory(0, []byte("hello"))

	root1, err := f.RootHash(ctx)
	require.NoError(t, err)

	require.NoError(t, f.Store(ctx, snapshotPath))

	loaded := NewFake()
	require.NoError(t, loaded.Load(ctx, snapshotPath))

	root2, err := loaded.RootHash(ctx)
	require.NoError(t, err)
	require.Equal(t, root1, root2)
}

func TestFakeRunYieldsAtConfiguredCycle(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	yieldAt := uint64(10)
	f.YieldAtMCycle = &yieldAt

	reason, err := f.Run(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, BreakReachedTargetMCycle, reason)

	reason, err = f.Run(ctx, 20)
	require.NoError(t, err)
	require.Equal(t, BreakYieldedManually, reason)

	yielded, err := f.IsYielded(ctx)
	require.NoError(t, err)
	require.True(t, yielded)
}

func TestFakeSendInputResponseClearsYield(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	yieldAt := uint64(1)
	f.YieldAtMCycle = &yieldAt

	_, err := f.Run(ctx, 1)
	require.NoError(t, err)
	yielded, _ := f.IsYielded(ctx)
	require.True(t, yielded)

	require.NoError(t, f.SendInputResponse(ctx, []byte("input")))
	yielded, _ = f.IsYielded(ctx)
	require.False(t, yielded)
}

func TestFakeProofAtVerifies(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.WriteMemory(0, []byte("data"))

	leaf, proof, err := f.ProofAt(ctx, 0, 4)
	require.NoError(t, err)
	require.NotEmpty(t, proof)
	require.NotEqual(t, merkle.Zero, leaf)
}
