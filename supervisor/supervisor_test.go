package supervisor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	err    error
	waitFn func(ctx context.Context) error
}

func (f *fakeWorker) Start(ctx context.Context) error {
	if f.waitFn != nil {
		return f.waitFn(ctx)
	}
	return f.err
}

func TestSupervisorRunPropagatesFirstError(t *testing.T) {
	w := NewWatch()
	boom := errors.New("boom")

	blocked := &fakeWorker{waitFn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	failing := &fakeWorker{err: boom}

	s := New(w, blocked, failing)
	err := s.Run(context.Background())

	require.Error(t, err)
	require.Equal(t, boom, w.Err())
}

func TestSupervisorRunSucceedsWhenAllWorkersReturnNil(t *testing.T) {
	w := NewWatch()
	s := New(w, &fakeWorker{}, &fakeWorker{})

	require.NoError(t, s.Run(context.Background()))
	require.NoError(t, w.Err())
}
