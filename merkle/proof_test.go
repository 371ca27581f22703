package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// R1: Proof flattens to bytes and back without loss.
func TestProofFlatRoundTrip(t *testing.T) {
	proof := Proof{FromData([]byte{1}), FromData([]byte{2}), FromData([]byte{3})}
	flat := proof.Flat()
	require.Len(t, flat, 3*Size)

	back, err := ProofFromFlat(flat)
	require.NoError(t, err)
	require.Equal(t, proof, back)
}

func TestProofFromFlatRejectsBadLength(t *testing.T) {
	_, err := ProofFromFlat(make([]byte, Size+1))
	require.Error(t, err)
}

// I5: a proof extracted by ProveLeaf verifies against the tree's root.
func TestVerifyAgainstBuiltTree(t *testing.T) {
	b := NewBuilder()
	b.AppendRepeated(FromData([]byte("x")), 8)
	tree := b.Build()

	for i := uint64(0); i < 8; i++ {
		leaf, proof := tree.ProveLeaf(i)
		require.True(t, Verify(leaf, i, proof, tree.RootHash()))
	}
}
