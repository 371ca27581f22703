// Package commitment builds the Merkle commitment trees used at every
// level of the dispute tournament, from whole-input big steps down to
// micro-architecture steps, by driving a machine.Machine forward and
// folding its state hashes into a merkle.Builder.
package commitment

// Log2UarchSpanToBarch, Log2BarchSpanToInput, and Log2InputSpanToEpoch
// fix the width of each level of the commitment tree. A micro-step span
// covers 2^Log2UarchSpanToBarch micro cycles before folding into one
// big-step leaf; a big-step span covers 2^Log2BarchSpanToInput big steps
// before folding into one input leaf; an input span covers
// 2^Log2InputSpanToEpoch inputs before folding into one epoch leaf.
const (
	Log2UarchSpanToBarch = 20
	Log2BarchSpanToInput = 48
	Log2InputSpanToEpoch = 24

	Log2InputSpanFromUarch = Log2BarchSpanToInput + Log2UarchSpanToBarch
)

// Log2UarchSpanLegacy names the superseded width once used for the
// micro-step span. Nothing in this repository reads it: snapshots do not
// record the span width they were produced under, so none is checked
// against it.
const Log2UarchSpanLegacy = 16

// maxUint returns 2^k - 1, saturating correctly at k == 64.
func maxUint(k uint64) uint64 {
	if k >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << k) - 1
}

// UarchSpanToBarch is the number of micro-architecture steps folded
// into a single big-step leaf.
var UarchSpanToBarch = maxUint(Log2UarchSpanToBarch)
