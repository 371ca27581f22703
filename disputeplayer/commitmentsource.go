package disputeplayer

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/rollups-dave/node/commitment"
	"github.com/rollups-dave/node/machine"
	"github.com/rollups-dave/node/merkle"
	"github.com/rollups-dave/node/statestore"
)

// DefaultCommitmentSource builds local commitment trees and step
// access logs straight off a live machine.Machine, the same emulator
// facade machinerunner.Runner drives (commitment.Builder is C4's
// tree-building machinery; this just wires it to the dispute-player
// seam). store supplies the leaf cache (spec.md §4.3) and the snapshot
// machine.Machine is advanced from to reach a level's base_cycle
// (spec.md §4.4).
type DefaultCommitmentSource struct {
	machine machine.Machine
	store   *statestore.Store
}

func NewDefaultCommitmentSource(m machine.Machine, store *statestore.Store) *DefaultCommitmentSource {
	return &DefaultCommitmentSource{machine: m, store: store}
}

// Tree builds the commitment tree for level over a span of
// 2^log2StrideCount steps of width 2^log2Stride each, rooted at
// baseBigCycle. It first consults the leaf cache, then — on a miss —
// loads the closest recorded snapshot at or before baseBigCycle,
// advances the machine the rest of the way there, builds the leafs,
// and caches them before returning the tree.
func (d *DefaultCommitmentSource) Tree(ctx context.Context, level, log2Stride, log2StrideCount, baseBigCycle uint64) (*merkle.Tree, error) {
	leafs, err := d.store.Leafs(level, log2Stride, log2StrideCount, baseBigCycle)
	if err != nil {
		return nil, errors.Wrap(err, "disputeplayer: read cached commitment leafs")
	}

	if leafs == nil {
		if err := d.seekTo(ctx, baseBigCycle); err != nil {
			return nil, err
		}
		leafs, err = commitment.NewBuilder(d.machine).BuildMachineCommitment(ctx, baseBigCycle, level, log2Stride, log2StrideCount)
		if err != nil {
			return nil, errors.Wrap(err, "disputeplayer: build commitment tree")
		}
		if err := d.store.InsertLeafs(level, log2Stride, log2StrideCount, baseBigCycle, leafs); err != nil {
			return nil, errors.Wrap(err, "disputeplayer: cache commitment leafs")
		}
	}

	b := merkle.NewBuilder()
	for _, leaf := range leafs {
		b.AppendRepeated(leaf.Hash, leaf.Repetitions)
	}
	return b.Build(), nil
}

// seekTo loads the closest recorded snapshot at or before bigCycle and
// runs the machine the rest of the way there, so the caller's
// subsequent commitment.Builder calls start rooted at bigCycle exactly
// (spec.md §4.4: every non-root level commits over a window rooted at
// base_cycle).
func (d *DefaultCommitmentSource) seekTo(ctx context.Context, bigCycle uint64) error {
	path, _, ok, err := d.store.ClosestSnapshotAtOrBefore(bigCycle)
	if err != nil {
		return errors.Wrap(err, "disputeplayer: find closest snapshot")
	}
	if !ok {
		return errors.Newf("disputeplayer: no recorded snapshot at or before cycle %d", bigCycle)
	}
	if err := d.machine.Load(ctx, path); err != nil {
		return errors.Wrap(err, "disputeplayer: load snapshot")
	}
	if _, err := d.machine.Run(ctx, bigCycle); err != nil {
		return errors.Wrap(err, "disputeplayer: advance machine to base cycle")
	}
	return nil
}

func (d *DefaultCommitmentSource) StepAccessLog(ctx context.Context, bigCycle, ucycle uint64) ([]byte, error) {
	if err := d.seekTo(ctx, bigCycle); err != nil {
		return nil, err
	}
	for i := uint64(0); i < ucycle; i++ {
		if _, err := d.machine.StepMicroArch(ctx); err != nil {
			return nil, errors.Wrap(err, "disputeplayer: step micro arch to disputed step")
		}
	}
	_, proof, err := d.machine.ProofAt(ctx, 0, merkle.Size)
	if err != nil {
		return nil, errors.Wrap(err, "disputeplayer: build step access proof")
	}
	return proof.Flat(), nil
}
