package machine

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrMachineHalted reports a machine that has already halted and cannot
// advance further. Fake.Run never returns it.
var ErrMachineHalted = errors.New("machine: already halted")

// ErrInvalidBreakReason is returned when Run observes a break reason the
// caller did not expect; it signals a programming-invariant violation
// in the same spirit as the original emulator's `panic!` on an
// unrecognized break_reason.
type ErrInvalidBreakReason struct {
	Reason int
}

func (e *ErrInvalidBreakReason) Error() string {
	return fmt.Sprintf("machine: invalid break reason %d", e.Reason)
}
