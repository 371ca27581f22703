package disputeplayer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rollups-dave/node/internal/rlog"
)

// GarbageCollector eliminates timed-out matches and decided inner
// tournaments, freeing on-chain storage — ported from strategy/gc.rs's
// GarbageCollector::react/react_tournament/react_match exactly,
// including the recursive-into-children-only-if-not-decided shape.
type GarbageCollector struct {
	arena          ArenaSender
	rootTournament common.Address
}

// ArenaSender is the narrow write surface gc.go and player.go need;
// it's satisfied by an adapter over contracts.TournamentCaller per
// tournament address.
type ArenaSender interface {
	EliminateMatch(ctx context.Context, tournament common.Address, id MatchID) error
	EliminateInnerTournament(ctx context.Context, tournament, child common.Address) error
}

func NewGarbageCollector(arena ArenaSender, rootTournament common.Address) *GarbageCollector {
	return &GarbageCollector{arena: arena, rootTournament: rootTournament}
}

// React walks the tournament tree from the root, eliminating matches
// and tournaments as described in spec.md §4.8's garbage-collection
// sub-component.
func (gc *GarbageCollector) React(ctx context.Context, states TournamentStateMap) error {
	return gc.reactTournament(ctx, gc.rootTournament, states)
}

func (gc *GarbageCollector) reactTournament(ctx context.Context, tournamentAddress common.Address, states TournamentStateMap) error {
	state, ok := states[tournamentAddress]
	if !ok {
		return errors.Newf("disputeplayer: gc: tournament state not found for %s", tournamentAddress)
	}

	for _, m := range state.Matches {
		if err := gc.reactMatch(ctx, m, states, tournamentAddress); err != nil {
			return err
		}

		status1, ok := state.CommitmentStates[m.ID.CommitmentOne]
		if !ok {
			return errors.Newf("disputeplayer: gc: status of commitment one not found")
		}
		status2, ok := state.CommitmentStates[m.ID.CommitmentTwo]
		if !ok {
			return errors.Newf("disputeplayer: gc: status of commitment two not found")
		}

		if (!status1.Clock.HasTime() && status1.Clock.TimeSinceTimeout() > status2.Clock.Allowance) ||
			(!status2.Clock.HasTime() && status2.Clock.TimeSinceTimeout() > status1.Clock.Allowance) {
			rlog.Debug("disputeplayer: eliminating match",
				"commitment_one", m.ID.CommitmentOne.Hex(), "commitment_two", m.ID.CommitmentTwo.Hex(),
				"tournament", tournamentAddress, "level", state.Level)

			if err := gc.arena.EliminateMatch(ctx, tournamentAddress, m.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (gc *GarbageCollector) reactMatch(ctx context.Context, m *MatchState, states TournamentStateMap, tournamentAddress common.Address) error {
	if m.InnerTournament == nil {
		return nil
	}
	inner, ok := states[*m.InnerTournament]
	if !ok {
		return errors.Newf("disputeplayer: gc: tournament state not found for %s", *m.InnerTournament)
	}

	if canEliminate(inner) {
		rlog.Debug("disputeplayer: eliminating inner tournament",
			"inner", *m.InnerTournament, "level", inner.Level, "parent", tournamentAddress)
		return gc.arena.EliminateInnerTournament(ctx, tournamentAddress, *m.InnerTournament)
	}
	return gc.reactTournament(ctx, *m.InnerTournament, states)
}

// canEliminate reports whether an inner tournament has a recorded
// winner and is therefore safe to remove from its parent.
func canEliminate(t *TournamentState) bool {
	return t.Winner != nil
}
