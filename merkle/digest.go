// Package merkle implements the commitment Merkle tree: a builder that
// folds state hashes (with repetition runs) into a tree, iterated-subtree
// caching for long runs of an identical leaf, and proof extraction.
package merkle

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Size is the byte length of a Digest.
const Size = 32

// Digest is the output of the hash function used to identify data in the
// Merkle tree.
type Digest [Size]byte

// Zero is the all-zero digest.
var Zero = Digest{}

// FromBytes builds a Digest from a 32-byte slice.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("merkle: invalid digest length %d, want %d", len(b), Size)
	}
	copy(d[:], b)
	return d, nil
}

// FromHex parses a "0x"-prefixed hex string into a Digest.
func FromHex(s string) (Digest, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("merkle: invalid hex digest: %w", err)
	}
	return FromBytes(b)
}

// FromData hashes data with keccak256 to produce a Digest.
func FromData(data []byte) Digest {
	var d Digest
	copy(d[:], crypto.Keccak256(data))
	return d
}

// Join computes keccak256(a||b), the internal-node hashing rule of the tree.
func Join(a, b Digest) Digest {
	var d Digest
	copy(d[:], crypto.Keccak256(a[:], b[:]))
	return d
}

// Join is a convenience method equivalent to Join(d, other).
func (d Digest) Join(other Digest) Digest {
	return Join(d, other)
}

// IsZero reports whether every byte of the digest is zero.
func (d Digest) IsZero() bool {
	return d == Zero
}

// Bytes returns the digest's bytes as a slice.
func (d Digest) Bytes() []byte {
	return d[:]
}

// Hex renders the digest as a "0x"-prefixed hex string.
func (d Digest) Hex() string {
	return "0x" + hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}
