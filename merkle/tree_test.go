package merkle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// E4: a builder with (ZERO, 2) and (ZERO, 2^64-2) produces a tree whose
// leaf at index 0 is ZERO, and whose root equals iterated(ZERO, 64).
func TestTreeHugeRepetition(t *testing.T) {
	b := NewBuilder()
	b.AppendRepeated(Zero, 2)
	b.AppendRepeated(Zero, math.MaxUint64-1) // 2^64 - 2
	tree := b.Build()

	leaf, _ := tree.ProveLeaf(0)
	require.Equal(t, Zero, leaf)

	want := Zero
	for i := 0; i < 64; i++ {
		want = Join(want, want)
	}
	require.Equal(t, want, tree.RootHash())
}

// E3: a tiny tree (8 identical leaves) proves and verifies correctly.
func TestTreeProofVerifies(t *testing.T) {
	b := NewBuilder()
	b.AppendRepeated(FromData([]byte("leaf")), 8)
	tree := b.Build()

	leaf, proof := tree.ProveLeaf(0)

	root := leaf
	for _, sibling := range proof {
		root = Join(sibling, root)
	}
	require.Equal(t, tree.RootHash(), root)
}

func TestTreeLastProofVerifies(t *testing.T) {
	b := NewBuilder()
	b.AppendRepeated(Zero, 2)
	b.AppendRepeated(Zero, math.MaxUint64-1)
	tree := b.Build()

	leaf, proof := tree.Last()

	root := leaf
	for _, sibling := range proof {
		root = Join(sibling, root)
	}
	require.Equal(t, tree.RootHash(), root)
}

func TestRootChildrenPanicsOnSingleLeaf(t *testing.T) {
	b := NewBuilder()
	b.Append(FromData([]byte("solo")))
	tree := b.Build()

	require.Panics(t, func() {
		tree.RootChildren()
	})
}
