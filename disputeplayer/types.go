// Package disputeplayer walks the on-chain tournament tree for one
// sealed epoch's root tournament and drives this node's commitments
// through the join/advance/seal/win dispute protocol (spec.md §4.8).
package disputeplayer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/rollups-dave/node/commitment"
	"github.com/rollups-dave/node/contracts"
	"github.com/rollups-dave/node/merkle"
)

// TournamentStateMap and CommitmentMap mirror the teacher's
// arena.rs type aliases field-for-field.
type TournamentStateMap map[common.Address]*TournamentState
type CommitmentMap map[common.Address]*commitment.Commitment

// MatchID identifies a match by the two commitment hashes in dispute.
type MatchID struct {
	CommitmentOne merkle.Digest
	CommitmentTwo merkle.Digest
}

// Hash is the on-chain match identifier: join(commitment_one, commitment_two).
func (m MatchID) Hash() merkle.Digest {
	return merkle.Join(m.CommitmentOne, m.CommitmentTwo)
}

// ToContract converts to the narrow struct contracts.TournamentCaller
// methods expect.
func (m MatchID) ToContract() contracts.MatchID {
	return contracts.MatchID{CommitmentOne: m.CommitmentOne, CommitmentTwo: m.CommitmentTwo}
}

// ClockState mirrors arena.rs's ClockState exactly, including
// HasTime/TimeSinceTimeout.
type ClockState struct {
	Allowance    uint64
	StartInstant uint64
	BlockNumber  uint64
}

// HasTime reports whether the clock still has time remaining: a
// stopped clock (StartInstant == 0) always has time.
func (c ClockState) HasTime() bool {
	if c.StartInstant == 0 {
		return true
	}
	return c.deadline() > c.BlockNumber
}

// TimeSinceTimeout reports how many blocks past the deadline the clock
// is, or 0 if it hasn't timed out (or isn't ticking).
func (c ClockState) TimeSinceTimeout() uint64 {
	if c.StartInstant == 0 {
		return 0
	}
	if c.BlockNumber <= c.deadline() {
		return 0
	}
	return c.BlockNumber - c.deadline()
}

func (c ClockState) deadline() uint64 {
	return c.StartInstant + c.Allowance
}

// CommitmentState is the state of one commitment joined to a
// tournament: its clock, its claimed final state, and the index of its
// currently open match, if any.
type CommitmentState struct {
	Clock       ClockState
	FinalState  merkle.Digest
	LatestMatch *int
}

// TournamentWinner records how a tournament terminated.
type TournamentWinner struct {
	Root  bool // true for a root-tournament win, false for an inner one
	Left  merkle.Digest
	Right merkle.Digest
}

// TournamentState mirrors arena.rs's TournamentState exactly.
type TournamentState struct {
	Address          common.Address
	BaseBigCycle     uint64
	Level            uint64
	Log2Stride       uint64
	Log2StrideCount  uint64
	MaxLevel         uint64
	Parent           *common.Address
	CommitmentStates map[merkle.Digest]*CommitmentState
	Matches          []*MatchState
	Winner           *TournamentWinner
}

// NewRootTournamentState constructs the root TournamentState (level 0,
// no parent, no base cycle offset).
func NewRootTournamentState(address common.Address) *TournamentState {
	return &TournamentState{Address: address, CommitmentStates: map[merkle.Digest]*CommitmentState{}}
}

// NewInnerTournamentState constructs an inner tournament one level
// below parent, inheriting baseBigCycle from the disputed match.
func NewInnerTournamentState(address common.Address, level, baseBigCycle uint64, parent common.Address) *TournamentState {
	return &TournamentState{
		Address:          address,
		BaseBigCycle:     baseBigCycle,
		Level:            level + 1,
		Parent:           &parent,
		CommitmentStates: map[merkle.Digest]*CommitmentState{},
	}
}

// MatchState mirrors arena.rs's MatchState exactly. RunningLeafPosition
// and LeafCycle are *big.Int, not uint64: the commitment tree's total
// height (Log2UarchSpanToBarch + Log2BarchSpanToInput +
// Log2InputSpanToEpoch = 92) can exceed 64 bits, the same headroom
// reason merkle.accumCount uses math/big rather than uint64.
type MatchState struct {
	ID                  MatchID
	OtherParent         merkle.Digest
	LeftNode            merkle.Digest
	RightNode           merkle.Digest
	RunningLeafPosition *big.Int
	CurrentHeight       uint64
	LeafCycle           *big.Int
	BaseBigCycle        uint64
	TournamentAddress   common.Address
	InnerTournament     *common.Address
}
