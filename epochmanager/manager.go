// Package epochmanager polls the consensus contract's canSettle() and
// submits settle(epochNumber) once this node's local settlement for
// that epoch is available (spec.md §4.7).
package epochmanager

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"

	"github.com/rollups-dave/node/contracts"
	"github.com/rollups-dave/node/internal/rlog"
	"github.com/rollups-dave/node/merkle"
	"github.com/rollups-dave/node/statestore"
)

// Manager drives one consensus contract's settlement lifecycle,
// matching the teacher's EpochManager<SM>.
type Manager struct {
	consensus     *contracts.ConsensusCaller
	store         *statestore.Store
	transactor    *bind.TransactOpts
	sleepDuration time.Duration
}

func New(consensus *contracts.ConsensusCaller, store *statestore.Store, transactor *bind.TransactOpts, sleepDuration time.Duration) *Manager {
	return &Manager{consensus: consensus, store: store, transactor: transactor, sleepDuration: sleepDuration}
}

// Start implements supervisor.Worker.
func (m *Manager) Start(ctx context.Context) error {
	for {
		if err := m.tick(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.sleepDuration):
		}
	}
}

func (m *Manager) tick(ctx context.Context) error {
	canSettle, err := m.consensus.CanSettle(ctx)
	if err != nil {
		// provider errors are retried on the next tick, not fatal (spec.md §4.7).
		rlog.Error("epochmanager: canSettle call failed", "err", err)
		return nil
	}
	if !canSettle.IsFinished {
		return nil
	}

	settlement, err := m.store.SettlementInfo(canSettle.EpochNumber)
	if err != nil {
		return errors.Wrap(err, "epochmanager: read local settlement")
	}
	if settlement == nil {
		// machine-runner has not yet written this epoch's settlement.
		return nil
	}

	if canSettle.EpochHash != [32]byte(settlement.ComputationHash) {
		rlog.Error("epochmanager: on-chain claim differs from local settlement",
			"epoch", canSettle.EpochNumber, "onchain", merkle.Digest(canSettle.EpochHash).Hex(), "local", settlement.ComputationHash.Hex())
	}
	rlog.Info("epochmanager: settling epoch", "epoch", canSettle.EpochNumber, "claim", settlement.ComputationHash.Hex())
	if _, err := m.consensus.Settle(m.transactor, canSettle.EpochNumber); err != nil {
		// allow retry when errors happen, matching the teacher's own
		// log-and-continue on a failed settle() send.
		rlog.Error("epochmanager: settle failed", "epoch", canSettle.EpochNumber, "err", err)
	}
	// TODO: if the on-chain claim doesn't match settlement, that can be
	// a serious problem; send out alert (open question, spec.md §9.1).
	return nil
}
