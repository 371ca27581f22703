package merkle

import "fmt"

// Proof is an ordered sequence of sibling digests, from leaf to root.
type Proof []Digest

// Flat packs the proof into a flat byte blob, siblings in order.
func (p Proof) Flat() []byte {
	out := make([]byte, 0, len(p)*Size)
	for _, d := range p {
		out = append(out, d[:]...)
	}
	return out
}

// ProofFromFlat unpacks a flat byte blob (length divisible by Size) back
// into a Proof. It is the inverse of Proof.Flat, satisfying round-trip
// property R1.
func ProofFromFlat(flat []byte) (Proof, error) {
	if len(flat)%Size != 0 {
		return nil, fmt.Errorf("merkle: flat proof length %d not divisible by %d", len(flat), Size)
	}
	n := len(flat) / Size
	proof := make(Proof, n)
	for i := 0; i < n; i++ {
		copy(proof[i][:], flat[i*Size:(i+1)*Size])
	}
	return proof, nil
}

// Verify joins leaf with the proof's siblings in order, using bit i of
// index (from the least significant, leaf-adjacent bit) to decide
// left/right order at each level, and reports whether the result equals
// root.
func Verify(leaf Digest, index uint64, proof Proof, root Digest) bool {
	acc := leaf
	for i, sibling := range proof {
		if (index>>uint(i))&1 == 0 {
			acc = Join(acc, sibling)
		} else {
			acc = Join(sibling, acc)
		}
	}
	return acc == root
}
