package supervisor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFreshWatchTimesOut(t *testing.T) {
	w := NewWatch()
	err := w.Wait(10 * time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Err())
}

func TestNotifyBreaksWaiterAndSetsError(t *testing.T) {
	w := NewWatch()

	var got error
	done := make(chan struct{})
	go func() {
		got = w.Wait(5 * time.Second)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	boom := errors.New("boom")
	w.Notify(boom)

	<-done
	require.Equal(t, boom, got)
	require.Equal(t, boom, w.Err())
}

func TestFirstErrorIsPreserved(t *testing.T) {
	w := NewWatch()

	first := errors.New("first")
	second := errors.New("second")

	w.Notify(first)
	w.Notify(second)

	require.Equal(t, first, w.Err())
}

// E5: all waiters wake within 500ms of Notify.
func TestMultipleWaitersAllBreak(t *testing.T) {
	w := NewWatch()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := w.Wait(5 * time.Second)
			require.Error(t, err)
		}()
	}

	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	w.Notify(errors.New("stop"))

	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("waiters did not wake within 500ms")
	}
	require.Less(t, time.Since(start), 500*time.Millisecond)
}
