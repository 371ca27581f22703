// Package statestore persists consensus data (inputs, epochs, the last
// processed L1 block), rollup data (commitment-leaf caches, machine
// snapshots, settlement proofs), and the snapshot directory tree behind
// a single SQLite database in WAL mode, via modernc.org/sqlite.
package statestore

import "github.com/rollups-dave/node/merkle"

// InputID identifies a single input by the epoch it belongs to and its
// position within that epoch.
type InputID struct {
	EpochNumber       uint64
	InputIndexInEpoch uint64
}

// IncrementIndex returns the InputID of the next input in the same epoch.
func (id InputID) IncrementIndex() InputID {
	return InputID{EpochNumber: id.EpochNumber, InputIndexInEpoch: id.InputIndexInEpoch + 1}
}

// IncrementEpoch returns the InputID of the first input of the next epoch.
func (id InputID) IncrementEpoch() InputID {
	return InputID{EpochNumber: id.EpochNumber + 1, InputIndexInEpoch: 0}
}

// ValidateNext reports whether next legally follows id: either the next
// input in the same epoch, or the first input of any later epoch (I1).
func (id InputID) ValidateNext(next InputID) bool {
	if next.EpochNumber == id.EpochNumber && next.InputIndexInEpoch == id.InputIndexInEpoch+1 {
		return true
	}
	if next.EpochNumber > id.EpochNumber && next.InputIndexInEpoch == 0 {
		return true
	}
	return false
}

// Input is one input's raw payload and its position.
type Input struct {
	ID   InputID
	Data []byte
}

// Epoch is one sealed or in-progress epoch's consensus-derived metadata.
type Epoch struct {
	EpochNumber        uint64
	InputIndexBoundary uint64
	RootTournament     string
	BlockCreatedNumber uint64
}

// Settlement is the final output-commitment proof recorded for a
// settled epoch.
type Settlement struct {
	ComputationHash merkle.Digest
	OutputMerkle    merkle.Digest
	OutputProof     merkle.Proof
}
