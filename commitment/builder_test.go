package commitment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollups-dave/node/machine"
)

func newYieldedFake() *machine.Fake {
	f := machine.NewFake()
	zero := uint64(0)
	f.YieldAtMCycle = &zero
	// force an initial yielded state at cycle 0
	_, _ = f.Run(context.Background(), 0)
	return f
}

func TestBuildBigMachineCommitmentRejectsStrideOverflow(t *testing.T) {
	f := newYieldedFake()
	b := NewBuilder(f)

	_, err := b.BuildMachineCommitment(context.Background(), 0, 0, Log2UarchSpanToBarch, Log2InputSpanToEpoch+Log2BarchSpanToInput+Log2UarchSpanToBarch+1)
	require.Error(t, err)
}

func TestBuildBigMachineCommitmentProducesLeafs(t *testing.T) {
	f := newYieldedFake()
	b := NewBuilder(f)

	leafs, err := b.BuildMachineCommitment(context.Background(), 0, 0, Log2UarchSpanToBarch, 3)
	require.NoError(t, err)
	require.NotEmpty(t, leafs)

	var total uint64
	for _, l := range leafs {
		total += l.Repetitions
	}
	require.Equal(t, uint64(1)<<3, total)
}

func TestBuildMachineCommitmentRequiresYieldedAtOrigin(t *testing.T) {
	f := machine.NewFake()
	b := NewBuilder(f)

	_, err := b.BuildMachineCommitment(context.Background(), 0, 0, Log2UarchSpanToBarch, 1)
	require.Error(t, err)
}

func TestFromLeafsBuildsTree(t *testing.T) {
	leafs, err := NewBuilder(newYieldedFake()).BuildMachineCommitment(context.Background(), 0, 0, Log2UarchSpanToBarch, 2)
	require.NoError(t, err)

	c := FromLeafs(leafs, leafs[0].Hash)
	require.NotNil(t, c.Tree)
	require.Equal(t, uint32(2), c.Tree.Log2Size())
}
