package merkle

import "fmt"

// Fault signals a programming-invariant violation inside the Merkle
// builder or tree (bad stride parameters, a non-power-of-two total, a
// wrapped-to-zero builder, a missing node during proof extraction). These
// are never expected in correct operation; callers at a worker boundary
// recover them and report a single fatal error through the supervisor's
// Watch rather than handling them as ordinary errors.
type Fault struct {
	Msg string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("merkle: invariant violation: %s", f.Msg)
}

func fault(format string, args ...any) {
	panic(&Fault{Msg: fmt.Sprintf(format, args...)})
}
