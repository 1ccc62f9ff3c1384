package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSentinelErrors(t *testing.T) {
	t.Run("wrapped errors maintain identity", func(t *testing.T) {
		wrapped := fmt.Errorf("renew lease 0: %w", ErrLeaseLost)
		require.ErrorIs(t, wrapped, ErrLeaseLost)
		require.NotErrorIs(t, wrapped, ErrLeaseNotFound)
	})

	t.Run("all errors are distinct", func(t *testing.T) {
		allErrors := []error{
			ErrLeaseLost,
			ErrLeaseNotFound,
			ErrLeaseConflict,
			ErrPreconditionFailed,
			ErrUnknownLeaseVersion,
			ErrFeedRangeGone,
			ErrPartitionSplit,
			ErrPartitionGone,
			ErrSourceThrottled,
			ErrPartitionStalled,
			ErrObserverFailed,
			ErrTaskCancelled,
		}

		for i, a := range allErrors {
			for j, b := range allErrors {
				if i == j {
					continue
				}
				require.NotErrorIs(t, a, b, "%v should not match %v", a, b)
			}
		}
	})
}

func TestFeedRangeGoneError(t *testing.T) {
	err := &FeedRangeGoneError{LeaseToken: "0", Continuation: "42", Split: true, Err: ErrPartitionSplit}

	require.ErrorIs(t, err, ErrFeedRangeGone)
	require.ErrorIs(t, err, ErrPartitionSplit)
	require.NotErrorIs(t, err, ErrPartitionGone)

	var gone *FeedRangeGoneError
	require.ErrorAs(t, fmt.Errorf("supervisor: %w", err), &gone)
	require.Equal(t, "42", gone.Continuation)
	require.Contains(t, err.Error(), "split=true")
}

func TestIsCancellation(t *testing.T) {
	require.True(t, IsCancellation(context.Canceled))
	require.True(t, IsCancellation(ErrTaskCancelled))
	require.True(t, IsCancellation(fmt.Errorf("fetch: %w", context.DeadlineExceeded)))
	require.False(t, IsCancellation(ErrLeaseLost))
	require.False(t, IsCancellation(nil))
	require.False(t, IsCancellation(errors.New("boom")))
}
