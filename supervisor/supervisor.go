package supervisor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rollups-dave/node/internal/rlog"
)

// Worker is a long-running component the Supervisor manages: the
// blockchain reader, epoch manager, machine runner, and dispute player
// each implement Start, returning only on ctx cancellation or a fatal
// error.
type Worker interface {
	Start(ctx context.Context) error
}

// Supervisor runs a fixed set of workers concurrently and reports the
// first error any of them returns, cancelling the rest. It mirrors the
// teacher's top-level node wiring: every long-running task is a goroutine
// joined through a single errgroup, and a fatal error from one stops the
// others.
type Supervisor struct {
	workers []Worker
	watch   *Watch
}

// New returns a Supervisor over workers, sharing watch so components
// outside the errgroup (graceful shutdown handlers, health checks) can
// also observe the first fatal error.
func New(watch *Watch, workers ...Worker) *Supervisor {
	return &Supervisor{workers: workers, watch: watch}
}

// Run starts every worker and blocks until all have returned (because
// ctx was cancelled) or one returns an error, in which case ctx is
// cancelled for the rest and that error is returned.
func (s *Supervisor) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			err := w.Start(gctx)
			if err != nil {
				rlog.Error("worker stopped", "err", err)
				s.watch.Notify(err)
			}
			return err
		})
	}
	return g.Wait()
}

// WaitForFatal blocks until the Watch reports an error or timeout
// elapses; it's used by a health-check loop that runs outside the
// errgroup.
func (s *Supervisor) WaitForFatal(timeout time.Duration) error {
	return s.watch.Wait(timeout)
}
