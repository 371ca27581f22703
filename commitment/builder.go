package commitment

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/rollups-dave/node/machine"
	"github.com/rollups-dave/node/merkle"
)

// Builder drives a machine.Machine forward in either big-step mode
// (log2Stride >= Log2UarchSpanToBarch, one leaf per big step) or
// small-step mode (log2Stride == 0, one leaf per micro step within a
// single big step), accumulating the resulting state hashes as Leafs.
//
// Big-step position (cycle) is supplied fresh by each
// BuildMachineCommitment call via baseBigCycle, since the caller is
// responsible for loading and advancing the machine there first.
// Micro-step position (ucycle) is tracked across the runUarchSpan calls
// of a single small-step build, matching the narrow facade in the
// machine package: Run advances big-step position, StepMicroArch/
// ResetMicroArch advance and clear micro-step position.
type Builder struct {
	Machine machine.Machine

	ucycle uint64
}

// NewBuilder returns a Builder driving m.
func NewBuilder(m machine.Machine) *Builder {
	return &Builder{Machine: m}
}

// BuildMachineCommitment builds and returns the leafs for level, over a
// span of 2^log2StrideCount steps of width 2^log2Stride each, rooted at
// baseBigCycle. The caller must already have loaded and run the machine
// to baseBigCycle; this only drives it forward from there. It
// dispatches to big-step or small-step mode depending on log2Stride,
// mirroring the teacher's build_machine_commitment.
func (b *Builder) BuildMachineCommitment(ctx context.Context, baseBigCycle, level, log2Stride, log2StrideCount uint64) ([]Leaf, error) {
	if baseBigCycle == 0 {
		yielded, err := b.Machine.IsYielded(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "commitment: check yielded before unyielding")
		}
		if !yielded {
			return nil, errors.New("commitment: machine at cycle 0 must be yielded before building a commitment")
		}
	}

	if log2Stride >= Log2UarchSpanToBarch {
		if log2Stride+log2StrideCount > Log2InputSpanToEpoch+Log2BarchSpanToInput+Log2UarchSpanToBarch {
			return nil, errors.Newf("commitment: level %d stride %d+%d exceeds the epoch span", level, log2Stride, log2StrideCount)
		}
		return b.buildBigMachineCommitment(ctx, baseBigCycle, log2Stride, log2StrideCount)
	}

	if log2Stride != 0 {
		return nil, errors.Newf("commitment: small-step commitment requires log2Stride == 0, got %d", log2Stride)
	}
	return b.buildSmallMachineCommitment(ctx, log2StrideCount)
}

func (b *Builder) buildBigMachineCommitment(ctx context.Context, baseBigCycle, log2Stride, log2StrideCount uint64) ([]Leaf, error) {
	instructionCount := uint64(1) << log2StrideCount
	stride := uint64(1) << (log2Stride - Log2UarchSpanToBarch)
	cycle := baseBigCycle

	var leafs []Leaf
	for instruction := uint64(0); instruction < instructionCount; instruction++ {
		cycle += stride
		reason, err := b.Machine.Run(ctx, cycle)
		if err != nil {
			return nil, errors.Wrap(err, "commitment: run big step")
		}
		root, err := b.Machine.RootHash(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "commitment: read root hash")
		}

		halted := reason == machine.BreakHalted
		yielded, err := b.Machine.IsYielded(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "commitment: check yielded")
		}

		if !halted && !yielded {
			leafs = append(leafs, Leaf{Hash: root, Repetitions: 1})
			continue
		}
		leafs = append(leafs, Leaf{Hash: root, Repetitions: instructionCount - instruction})
		break
	}
	return leafs, nil
}

func (b *Builder) buildSmallMachineCommitment(ctx context.Context, log2StrideCount uint64) ([]Leaf, error) {
	spanCount := maxUint(log2StrideCount - Log2UarchSpanToBarch)

	var leafs []Leaf
	for span := uint64(0); span <= spanCount; span++ {
		spanLeafs, err := b.runUarchSpan(ctx)
		if err != nil {
			return nil, err
		}
		leafs = append(leafs, spanLeafs...)

		yielded, err := b.Machine.IsYielded(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "commitment: check yielded after uarch span")
		}
		if yielded {
			// the machine surfaced a program-level yield mid-span; run one
			// more span to settle it before closing out this level.
			spanLeafs, err := b.runUarchSpan(ctx)
			if err != nil {
				return nil, err
			}
			leafs = append(leafs, spanLeafs...)
			break
		}
	}
	return leafs, nil
}

// runUarchSpan advances the machine one micro step at a time until the
// micro-architecture halts (or, failing that, for a full span of
// UarchSpanToBarch micro steps), padding the final hash out to the span
// width when it halts early, then resets micro-architecture state and
// folds in the resulting big-step hash.
func (b *Builder) runUarchSpan(ctx context.Context) ([]Leaf, error) {
	if b.ucycle != 0 {
		return nil, errors.New("commitment: runUarchSpan called mid-span")
	}

	var leafs []Leaf
	var i uint64
	var lastRoot merkle.Digest

	for i < UarchSpanToBarch {
		halted, err := b.Machine.StepMicroArch(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "commitment: step micro arch")
		}
		b.ucycle++
		i++

		root, err := b.Machine.RootHash(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "commitment: read root hash")
		}
		lastRoot = root
		leafs = append(leafs, Leaf{Hash: root, Repetitions: 1})

		if halted {
			break
		}
	}
	if i < UarchSpanToBarch {
		leafs = append(leafs, Leaf{Hash: lastRoot, Repetitions: UarchSpanToBarch - i})
	}

	if err := b.Machine.ResetMicroArch(ctx); err != nil {
		return nil, errors.Wrap(err, "commitment: reset micro arch")
	}
	b.ucycle = 0

	finalRoot, err := b.Machine.RootHash(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "commitment: read root hash after reset")
	}
	leafs = append(leafs, Leaf{Hash: finalRoot, Repetitions: 1})

	return leafs, nil
}
