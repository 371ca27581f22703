package chainreader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBisectSplitsOnRangeTooLargeAndPreservesOrder(t *testing.T) {
	var calls [][2]uint64
	err := bisect(0, 3, func(lo, hi uint64) error {
		calls = append(calls, [2]uint64{lo, hi})
		if lo == 0 && hi == 3 {
			return errors.New("query returned more than 10000 results")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][2]uint64{{0, 3}, {0, 1}, {2, 3}}, calls)
}

func TestBisectPropagatesNonRangeErrors(t *testing.T) {
	boom := errors.New("connection refused")
	err := bisect(0, 10, func(lo, hi uint64) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestBisectGivesUpAtSingleBlock(t *testing.T) {
	tooLarge := errors.New("block range too large")
	calls := 0
	err := bisect(5, 5, func(lo, hi uint64) error {
		calls++
		return tooLarge
	})
	require.ErrorIs(t, err, tooLarge)
	require.Equal(t, 1, calls)
}
