package machine

import (
	"bytes"
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/rollups-dave/node/merkle"
)

// Fake is a deterministic in-memory Machine used by every other
// package's tests. It has no notion of RISC-V execution: Run simply
// advances a cycle counter and, once it reaches YieldAtMCycle (if set),
// reports a manual yield, mirroring the point at which the real
// emulator's rollup program calls out to request the next input.
type Fake struct {
	mu sync.Mutex

	memory  map[uint64][]byte
	mcycle  uint64
	ucycle  uint64
	yielded bool

	// YieldAtMCycle, when non-nil, is the mcycle at which Run reports
	// BreakYieldedManually and IsYielded flips true. SendInputResponse
	// clears the flag so the next input can run again.
	YieldAtMCycle *uint64

	// UarchHaltAtUCycle, when non-nil, is the ucycle count at which
	// StepMicroArch reports the micro-architecture halted. When nil,
	// StepMicroArch never reports a halt, so a commitment span always
	// runs to its full width with no padding leaf — the prior, simpler
	// behavior, still the default for callers that don't simulate a halt.
	UarchHaltAtUCycle *uint64

	inputs [][]byte

	snapshotDir string
}

type fakeState struct {
	Memory            map[uint64][]byte
	MCycle            uint64
	UCycle            uint64
	Yielded           bool
	YieldAtMCycle     *uint64
	UarchHaltAtUCycle *uint64
	Inputs            [][]byte
}

// NewFake returns an empty Fake with no loaded snapshot.
func NewFake() *Fake {
	return &Fake{memory: make(map[uint64][]byte)}
}

func (f *Fake) Load(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	blob, err := os.ReadFile(filepath.Join(path, "fake-machine.gob"))
	if err != nil {
		return errors.Wrapf(err, "machine: load fake snapshot at %s", path)
	}
	var st fakeState
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&st); err != nil {
		return errors.Wrap(err, "machine: decode fake snapshot")
	}
	f.memory = st.Memory
	f.mcycle = st.MCycle
	f.ucycle = st.UCycle
	f.yielded = st.Yielded
	f.YieldAtMCycle = st.YieldAtMCycle
	f.UarchHaltAtUCycle = st.UarchHaltAtUCycle
	f.inputs = st.Inputs
	f.snapshotDir = path
	return nil
}

func (f *Fake) Store(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(path, 0o755); err != nil {
		return errors.Wrapf(err, "machine: create snapshot dir %s", path)
	}
	var buf bytes.Buffer
	st := fakeState{
		Memory:            f.memory,
		MCycle:            f.mcycle,
		UCycle:            f.ucycle,
		Yielded:           f.yielded,
		YieldAtMCycle:     f.YieldAtMCycle,
		UarchHaltAtUCycle: f.UarchHaltAtUCycle,
		Inputs:            f.inputs,
	}
	if err := gob.NewEncoder(&buf).Encode(st); err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return errors.Wrapf(rmErr, "machine: cleanup after failed encode, caused by %v", err)
		}
		return errors.Wrap(err, "machine: encode fake snapshot")
	}
	if err := os.WriteFile(filepath.Join(path, "fake-machine.gob"), buf.Bytes(), 0o644); err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return errors.Wrapf(rmErr, "machine: cleanup after failed write, caused by %v", err)
		}
		return errors.Wrap(err, "machine: write fake snapshot")
	}
	f.snapshotDir = path
	return nil
}

func (f *Fake) RootHash(ctx context.Context) (merkle.Digest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rootHashLocked(), nil
}

func (f *Fake) rootHashLocked() merkle.Digest {
	keys := make([]uint64, 0, len(f.memory))
	for k := range f.memory {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var buf bytes.Buffer
	for _, k := range keys {
		var addr [8]byte
		for i := 0; i < 8; i++ {
			addr[i] = byte(k >> (8 * i))
		}
		buf.Write(addr[:])
		buf.Write(f.memory[k])
	}
	var mc [8]byte
	for i := 0; i < 8; i++ {
		mc[i] = byte(f.mcycle >> (8 * i))
	}
	buf.Write(mc[:])
	return merkle.FromData(buf.Bytes())
}

func (f *Fake) MCycle(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mcycle, nil
}

func (f *Fake) IsYielded(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.yielded, nil
}

func (f *Fake) Run(ctx context.Context, mcycleEnd uint64) (BreakReason, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.yielded {
		return BreakYieldedManually, nil
	}

	if f.YieldAtMCycle != nil && *f.YieldAtMCycle <= mcycleEnd && *f.YieldAtMCycle >= f.mcycle {
		f.mcycle = *f.YieldAtMCycle
		f.yielded = true
		return BreakYieldedManually, nil
	}

	f.mcycle = mcycleEnd
	return BreakReachedTargetMCycle, nil
}

func (f *Fake) StepMicroArch(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mcycle++
	f.ucycle++
	halted := f.UarchHaltAtUCycle != nil && f.ucycle >= *f.UarchHaltAtUCycle
	return halted, nil
}

func (f *Fake) ResetMicroArch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ucycle = 0
	return nil
}

func (f *Fake) SendInputResponse(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, append([]byte(nil), data...))
	f.yielded = false
	return nil
}

func (f *Fake) ProofAt(ctx context.Context, address uint64, length uint64) (merkle.Digest, merkle.Proof, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := f.readLocked(address, length)
	leaf := merkle.FromData(data)

	b := merkle.NewBuilder()
	b.Append(leaf)
	for i := 0; i < 7; i++ {
		b.Append(merkle.Zero)
	}
	tree := b.Build()
	_, proof := tree.ProveLeaf(0)
	return leaf, proof, nil
}

func (f *Fake) ReadMemory(ctx context.Context, address uint64, length uint64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readLocked(address, length), nil
}

func (f *Fake) readLocked(address uint64, length uint64) []byte {
	out := make([]byte, length)
	copy(out, f.memory[address])
	return out
}

// WriteMemory is a test helper, not part of the Machine interface: it
// seeds memory content so RootHash/ReadMemory/ProofAt have something
// deterministic to report.
func (f *Fake) WriteMemory(address uint64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memory[address] = append([]byte(nil), data...)
}
