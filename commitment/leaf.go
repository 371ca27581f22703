package commitment

import "github.com/rollups-dave/node/merkle"

// Leaf is one run of identical state hashes folded into a commitment
// tree: Hash repeated Repetitions times.
type Leaf struct {
	Hash        merkle.Digest
	Repetitions uint64
}

// Commitment is a built commitment tree together with the hash the
// machine was in before this level's steps ran.
type Commitment struct {
	ImplicitHash merkle.Digest
	Tree         *merkle.Tree
}

// FromLeafs folds leafs into a Merkle tree (I4: the builder enforces
// the total repetition count is a power of two).
func FromLeafs(leafs []Leaf, implicitHash merkle.Digest) *Commitment {
	b := merkle.NewBuilder()
	for _, l := range leafs {
		b.AppendRepeated(l.Hash, l.Repetitions)
	}
	return &Commitment{ImplicitHash: implicitHash, Tree: b.Build()}
}
