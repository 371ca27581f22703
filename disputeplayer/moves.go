package disputeplayer

import "github.com/rollups-dave/node/merkle"

// preferAggressiveMove implements spec.md §4.8's clock policy: if this
// node's own clock has more remaining time than the opponent's, prefer
// the defensive (bisecting advance/seal) move; otherwise prefer the
// aggressive move (attempt to win on the opponent's expired clock).
// A dead clock can make no move at all, aggressive or otherwise.
func preferAggressiveMove(own, opponent ClockState) bool {
	if !own.HasTime() {
		return false
	}
	if !opponent.HasTime() {
		return true
	}
	remaining := func(c ClockState) uint64 {
		if c.StartInstant == 0 {
			return c.Allowance
		}
		return c.deadline() - c.BlockNumber
	}
	return remaining(own) <= remaining(opponent)
}

// opponentCommitment returns the digest of the other side of match m,
// given this node's own commitment digest.
func opponentCommitment(m *MatchState, own merkle.Digest) merkle.Digest {
	if m.ID.CommitmentOne == own {
		return m.ID.CommitmentTwo
	}
	return m.ID.CommitmentOne
}
