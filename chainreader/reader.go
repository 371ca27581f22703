package chainreader

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rollups-dave/node/contracts"
	"github.com/rollups-dave/node/internal/rlog"
	"github.com/rollups-dave/node/statestore"
	"github.com/rollups-dave/node/supervisor"
)

// ChainGateway is the narrow slice of ethclient.Client this reader
// needs: the finalized-tag poll, bisected eth_getLogs, and the header
// lookup used to translate a block tag into a concrete number.
type ChainGateway interface {
	ethereum.LogFilterer
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// Reader polls the finalized chain tip and ingests InputAdded and
// EpochSealed events into the state store, one transaction per poll
// (spec.md §4.5).
type Reader struct {
	gateway       ChainGateway
	inputBox      *contracts.InputBoxFilterer
	consensus     *contracts.ConsensusCaller
	appAddress    common.Address
	store         *statestore.Store
	sleepDuration time.Duration
	watch         *supervisor.Watch
}

func NewReader(gateway ChainGateway, inputBox *contracts.InputBoxFilterer, consensus *contracts.ConsensusCaller, appAddress common.Address, store *statestore.Store, sleepDuration time.Duration, watch *supervisor.Watch) *Reader {
	return &Reader{
		gateway:       gateway,
		inputBox:      inputBox,
		consensus:     consensus,
		appAddress:    appAddress,
		store:         store,
		sleepDuration: sleepDuration,
		watch:         watch,
	}
}

// Start implements supervisor.Worker: it polls until ctx is cancelled
// or a fatal error occurs, at which point it returns that error so the
// supervisor can post it to the shared Watch.
func (r *Reader) Start(ctx context.Context) error {
	for {
		if err := r.pollOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.sleepDuration):
		}
	}
}

func (r *Reader) pollOnce(ctx context.Context) error {
	header, err := r.gateway.HeaderByNumber(ctx, big.NewInt(int64(-3))) // rpc.FinalizedBlockNumber
	if err != nil {
		return errors.Wrap(err, "chainreader: fetch finalized header")
	}
	finalized := header.Number.Uint64()

	last, err := r.store.LatestProcessedBlock()
	if err != nil {
		return errors.Wrap(err, "chainreader: read last processed block")
	}
	if finalized <= last {
		return nil
	}

	inputLogs, err := r.fetchInputsBisected(ctx, last+1, finalized)
	if err != nil {
		return errors.Wrap(err, "chainreader: fetch InputAdded logs")
	}
	epochLogs, err := r.fetchEpochsBisected(ctx, last+1, finalized)
	if err != nil {
		return errors.Wrap(err, "chainreader: fetch EpochSealed logs")
	}

	inputs, err := r.mapInputs(inputLogs)
	if err != nil {
		return err
	}
	epochs := mapEpochs(epochLogs, finalized)

	if err := r.store.InsertConsensusData(finalized, inputs, epochs); err != nil {
		rlog.Error("chainreader: consensus data inconsistency", "err", err)
		return err // fatal: state-store inconsistency (spec.md §7)
	}
	return nil
}

// mapInputs assigns each raw InputAdded log an (epoch, index-in-epoch)
// InputID by replaying it against the epoch boundaries already known
// to the store, preserving on-chain order.
func (r *Reader) mapInputs(logs []contracts.InputAdded) ([]statestore.Input, error) {
	out := make([]statestore.Input, 0, len(logs))
	last, err := r.store.LastInput()
	if err != nil {
		return nil, err
	}
	next := statestore.InputID{}
	if last != nil {
		next = last.IncrementIndex()
	}
	epochCount, err := r.store.EpochCount()
	if err != nil {
		return nil, err
	}
	for _, lg := range logs {
		if epochCount > 0 {
			if ep, err := r.store.Epoch(next.EpochNumber); err == nil && ep != nil && next.InputIndexInEpoch >= ep.InputIndexBoundary {
				next = next.IncrementEpoch()
			}
		}
		out = append(out, statestore.Input{ID: next, Data: lg.Input})
		next = next.IncrementIndex()
	}
	return out, nil
}

func mapEpochs(logs []contracts.EpochSealed, finalized uint64) []statestore.Epoch {
	out := make([]statestore.Epoch, 0, len(logs))
	for _, lg := range logs {
		out = append(out, statestore.Epoch{
			EpochNumber:        lg.EpochNumber,
			InputIndexBoundary: lg.InputIndexBoundary,
			RootTournament:     lg.RootTournament.Hex(),
			BlockCreatedNumber: finalized,
		})
	}
	return out
}

func (r *Reader) fetchInputsBisected(ctx context.Context, from, to uint64) ([]contracts.InputAdded, error) {
	var out []contracts.InputAdded
	err := bisect(from, to, func(lo, hi uint64) error {
		logs, err := r.inputBox.FilterInputAdded(ctx, r.appAddress, lo, hi)
		if err != nil {
			return err
		}
		out = append(out, logs...)
		return nil
	})
	return out, err
}

func (r *Reader) fetchEpochsBisected(ctx context.Context, from, to uint64) ([]contracts.EpochSealed, error) {
	var out []contracts.EpochSealed
	err := bisect(from, to, func(lo, hi uint64) error {
		logs, err := r.consensus.FilterEpochSealed(ctx, lo, hi)
		if err != nil {
			return err
		}
		out = append(out, logs...)
		return nil
	})
	return out, err
}

// bisect calls fetch(from, to) and, on a provider "range too large"
// error, halves the range and recurses, concatenating results from
// the low half before the high half so logs stay in block order
// (spec.md §4.5).
func bisect(from, to uint64, fetch func(lo, hi uint64) error) error {
	err := fetch(from, to)
	if err == nil {
		return nil
	}
	if !isRangeTooLarge(err) || from >= to {
		return err
	}
	mid := from + (to-from)/2
	if err := bisect(from, mid, fetch); err != nil {
		return err
	}
	return bisect(mid+1, to, fetch)
}

func isRangeTooLarge(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too large") ||
		strings.Contains(msg, "query returned more than") ||
		strings.Contains(msg, "limit exceeded") ||
		strings.Contains(msg, "block range")
}
