package merkle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMerkleBuilder8(t *testing.T) {
	b := NewBuilder()
	b.AppendRepeated(Zero, 2)
	b.AppendRepeated(Zero, 6)
	tree := b.Build()

	require.Equal(t, b.iteratedMerkle(Zero, 3), tree.RootHash())
}

func TestMerkleBuilder64(t *testing.T) {
	b := NewBuilder()
	b.AppendRepeated(Zero, 2)
	b.AppendRepeated(Zero, math.MaxUint64-1)
	tree := b.Build()

	require.Equal(t, b.iteratedMerkle(Zero, 64), tree.RootHash())
}

func TestBuilderRejectsZeroRepetition(t *testing.T) {
	b := NewBuilder()
	require.Panics(t, func() {
		b.AppendRepeated(Zero, 0)
	})
}

func TestBuilderRejectsNonPowerOfTwoTotal(t *testing.T) {
	b := NewBuilder()
	b.AppendRepeated(Zero, 3)
	require.Panics(t, func() {
		b.Build()
	})
}

// I4: appending a whole sub-tree shares its node map with the parent builder.
func TestAppendTreeSharesNodes(t *testing.T) {
	inner := NewBuilder()
	inner.AppendRepeated(FromData([]byte("a")), 4)
	innerTree := inner.Build()

	outer := NewBuilder()
	outer.AppendTreeRepeated(innerTree, 2)
	outerTree := outer.Build()

	require.Equal(t, uint32(1), outerTree.Log2Size())
	left, right := outerTree.RootChildren()
	require.Equal(t, innerTree.RootHash(), left)
	require.Equal(t, innerTree.RootHash(), right)
}

func TestBuilderEmptyBuildPanics(t *testing.T) {
	b := NewBuilder()
	require.Panics(t, func() {
		b.Build()
	})
}
