package rpctransport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, maxRetries+1, attempts)
}

func TestWithRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := WithRetry(ctx, func() error {
		attempts++
		return errors.New("transient")
	})
	require.Error(t, err)
}
