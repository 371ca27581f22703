// Package machine narrows the Cartesi RISC-V emulator down to the
// surface the rest of this repository needs: load/store a snapshot,
// read its root hash and cycle counter, advance it, feed it an input,
// and extract a Merkle proof of a memory range. The real emulator is a
// cgo collaborator out of scope here; this package ships the interface
// plus a deterministic in-memory fake used by every other package's
// tests.
package machine

import (
	"context"

	"github.com/rollups-dave/node/merkle"
)

// BreakReason mirrors the emulator's break_reason enum: why Run
// returned control to the caller.
type BreakReason int

const (
	BreakFailed BreakReason = iota
	BreakHalted
	BreakYieldedManually
	BreakYieldedAutomatically
	BreakYieldedSoftly
	BreakReachedTargetMCycle
)

// Machine is the narrow interface the rest of the node programs
// against. The only implementation in this repository is Fake, an
// in-memory test double; there is no cgo-backed implementation of the
// real emulator and no build tag that selects one.
type Machine interface {
	// Load opens the machine snapshot stored at path.
	Load(ctx context.Context, path string) error
	// Store persists the current machine state to path.
	Store(ctx context.Context, path string) error
	// RootHash returns the Merkle root of the machine's full memory state.
	RootHash(ctx context.Context) (merkle.Digest, error)
	// MCycle returns the machine's current cycle counter.
	MCycle(ctx context.Context) (uint64, error)
	// IsYielded reports whether the machine has yielded (manually or
	// automatically) and is waiting for the next input or directive.
	IsYielded(ctx context.Context) (bool, error)
	// Run advances the machine until it reaches mcycleEnd or yields,
	// returning the reason execution stopped.
	Run(ctx context.Context, mcycleEnd uint64) (BreakReason, error)
	// StepMicroArch advances the machine by one micro-architecture cycle,
	// reporting whether the micro-architecture halted (uhalted) as a
	// result — the signal a commitment span uses to stop early and pad.
	StepMicroArch(ctx context.Context) (halted bool, err error)
	// ResetMicroArch resets the micro-architecture state to its initial
	// values without touching the big-machine state.
	ResetMicroArch(ctx context.Context) error
	// SendInputResponse feeds data to the machine as an advance-state
	// input (a cmio Advance response).
	SendInputResponse(ctx context.Context, data []byte) error
	// ProofAt returns a Merkle proof of the len-byte range starting at
	// address, against the machine's full memory tree.
	ProofAt(ctx context.Context, address uint64, length uint64) (merkle.Digest, merkle.Proof, error)
	// ReadMemory reads length bytes starting at address.
	ReadMemory(ctx context.Context, address uint64, length uint64) ([]byte, error)
}
