// Package machinerunner drives the rollup machine: it is the sole
// writer of machine state (spec.md §5), advancing one input at a time,
// computing small-step commitment leaves, and storing snapshots and
// settlements through statestore.
package machinerunner

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rollups-dave/node/commitment"
	"github.com/rollups-dave/node/internal/rlog"
	"github.com/rollups-dave/node/machine"
	"github.com/rollups-dave/node/merkle"
	"github.com/rollups-dave/node/statestore"
)

// TxStart is the memory address of the rollup output region (the
// teacher's cartesi-machine PMA constant TX_START), read to build the
// settlement's output Merkle root and proof.
const TxStart = 0x60000000

// outputProofLength is the byte length of the output region proof,
// matching rollups_machine.rs's machine.proof(TX_START, 5) (a 2^5 = 32
// byte region, one hash).
const outputProofLength = 32

// log2Stride is the per-input hash-sampling granularity: every
// 2^(log2Stride-Log2UarchSpanToBarch) big-architecture cycles, one state
// hash is recorded, matching rollups_machine.rs's LOG2_STRIDE = 44.
const log2Stride = 44

// bigStepsInStride and strideCountInInput mirror rollups_machine.rs's
// BIG_STEPS_IN_STRIDE and STRIDE_COUNT_IN_INPUT exactly: the former is
// the cycle width advanced per sampled hash, the latter the total
// number of samples a fully-run input produces.
const (
	bigStepsInStride   = uint64(1) << (log2Stride - commitment.Log2UarchSpanToBarch)
	strideCountInInput = uint64(1) << (commitment.Log2BarchSpanToInput + commitment.Log2UarchSpanToBarch - log2Stride)
)

// Runner advances machine in lock-step with the inputs and epochs
// recorded in store, one input at a time.
type Runner struct {
	store            *statestore.Store
	machine          machine.Machine
	sleepDuration    time.Duration
	snapshotDuration time.Duration
	lastSnapshot     time.Time
	current          *statestore.InputID // last input fed to the machine; nil before the first one
}

func New(store *statestore.Store, m machine.Machine, sleepDuration, snapshotDuration time.Duration) *Runner {
	return &Runner{
		store:            store,
		machine:          m,
		sleepDuration:    sleepDuration,
		snapshotDuration: snapshotDuration,
	}
}

// Start implements supervisor.Worker: it loops feeding inputs to the
// machine until ctx is cancelled or a fatal error occurs (spec.md §4.6).
func (r *Runner) Start(ctx context.Context) error {
	for {
		if err := r.advanceAvailableInputs(ctx); err != nil {
			return err
		}
		if err := r.rollEpochIfComplete(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.sleepDuration):
		}
	}
}

func (r *Runner) advanceAvailableInputs(ctx context.Context) error {
	for {
		next, err := r.nextInput()
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		leafs, yielded, err := r.processInput(ctx, next.Data)
		if err != nil {
			return errors.Wrap(err, "machinerunner: process input")
		}

		if err := r.advance(ctx, next.ID, yielded, leafs); err != nil {
			return err
		}
		id := next.ID
		r.current = &id

		if time.Since(r.lastSnapshot) >= r.snapshotDuration {
			if err := r.snapshot(ctx, next.ID); err != nil {
				return err
			}
		}
	}
}

// nextInput returns the next recorded input to feed the machine, or
// (nil, nil) if the catalog has no more inputs after the one last fed.
func (r *Runner) nextInput() (*statestore.Input, error) {
	if r.current == nil {
		return r.store.Input(statestore.InputID{})
	}
	return r.store.Input(r.current.IncrementIndex())
}

// processInput feeds data to the machine and runs it in
// bigStepsInStride chunks until it yields, recording one state hash per
// chunk and a final hash padded out to strideCountInInput repetitions —
// exactly rollups_machine.rs's process_input/run_machine pair, ported
// from Rust's u64 loop to Go.
func (r *Runner) processInput(ctx context.Context, data []byte) ([]commitment.Leaf, bool, error) {
	if err := r.machine.SendInputResponse(ctx, data); err != nil {
		return nil, false, err
	}

	var leafs []commitment.Leaf
	var i uint64
	for {
		yielded, err := r.machine.IsYielded(ctx)
		if err != nil {
			return nil, false, err
		}
		if yielded {
			break
		}
		if err := r.runMachine(ctx, bigStepsInStride); err != nil {
			return nil, false, err
		}
		hash, err := r.machine.RootHash(ctx)
		if err != nil {
			return nil, false, err
		}
		leafs = append(leafs, commitment.Leaf{Hash: hash, Repetitions: 1})
		i++
	}

	hash, err := r.machine.RootHash(ctx)
	if err != nil {
		return nil, false, err
	}
	leafs = append(leafs, commitment.Leaf{Hash: hash, Repetitions: strideCountInInput - i})
	return leafs, true, nil
}

// runMachine advances the machine by cycles big-architecture cycles,
// looping past intermediate yields (automatic or soft) and returning
// once the machine yields manually or reaches the target cycle; any
// other break reason, a halt included, is an error, matching
// rollups_machine.rs's run_machine.
func (r *Runner) runMachine(ctx context.Context, cycles uint64) error {
	mcycle, err := r.machine.MCycle(ctx)
	if err != nil {
		return err
	}
	for {
		reason, err := r.machine.Run(ctx, mcycle+cycles)
		if err != nil {
			return err
		}
		switch reason {
		case machine.BreakYieldedAutomatically, machine.BreakYieldedSoftly:
			continue
		case machine.BreakYieldedManually, machine.BreakReachedTargetMCycle:
			return nil
		default:
			return errors.Newf("machinerunner: machine returned invalid break reason %d", reason)
		}
	}
}

// advance records the outcome of one input: accepted unless the
// machine yielded with a rejecting reason (spec.md §4.6's
// "determine accepted/reverted from the yield reason" — the Fake
// facade has no reject-tagged yield, so every completed input is
// recorded as accepted; a real emulator integration would branch on
// the yield reason code here).
func (r *Runner) advance(ctx context.Context, id statestore.InputID, accepted bool, leafs []commitment.Leaf) error {
	if accepted {
		return r.store.AdvanceAccepted(ctx, id, r.machine, leafs)
	}
	return r.store.AdvanceReverted(ctx, id, r.machine, leafs)
}

func (r *Runner) snapshot(ctx context.Context, id statestore.InputID) error {
	if err := r.store.AdvanceAccepted(ctx, id, r.machine, nil); err != nil {
		return err
	}
	r.lastSnapshot = time.Now()
	return nil
}

func (r *Runner) rollEpochIfComplete(ctx context.Context) error {
	if r.current == nil {
		return nil
	}
	epoch, err := r.store.Epoch(r.current.EpochNumber)
	if err != nil {
		return err
	}
	if epoch == nil || r.current.InputIndexInEpoch+1 < epoch.InputIndexBoundary {
		return nil
	}

	outputMerkle, proof, err := r.outputsProof(ctx)
	if err != nil {
		return errors.Wrap(err, "machinerunner: build outputs proof")
	}
	computationHash, err := r.machine.RootHash(ctx)
	if err != nil {
		return err
	}

	if err := r.store.InsertSettlement(r.current.EpochNumber, statestore.Settlement{
		ComputationHash: computationHash,
		OutputMerkle:    outputMerkle,
		OutputProof:     proof,
	}); err != nil {
		if errors.Is(err, statestore.ErrDuplicateEntry) {
			return nil // already settled this epoch; nothing to roll
		}
		return err
	}

	rlog.Info("machinerunner: rolling epoch", "epoch", r.current.EpochNumber)
	if err := r.store.RollEpoch(ctx, r.current.EpochNumber+1, r.machine); err != nil {
		return err
	}
	r.current = &statestore.InputID{EpochNumber: r.current.EpochNumber + 1}
	return nil
}

func (r *Runner) outputsProof(ctx context.Context) (merkle.Digest, merkle.Proof, error) {
	_, proof, err := r.machine.ProofAt(ctx, TxStart, outputProofLength)
	if err != nil {
		return merkle.Digest{}, merkle.Proof{}, err
	}
	data, err := r.machine.ReadMemory(ctx, TxStart, outputProofLength)
	if err != nil {
		return merkle.Digest{}, merkle.Proof{}, err
	}
	root, err := merkle.FromBytes(data)
	if err != nil {
		return merkle.Digest{}, merkle.Proof{}, err
	}
	return root, proof, nil
}
