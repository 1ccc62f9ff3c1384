package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// StateWaiter is the subset of Processor methods needed for waiting.
type StateWaiter interface {
	WaitState(expectedState types.State, timeout time.Duration) <-chan error
}

// WaitAllState waits for every processor to reach the expected state.
//
// Returns on the first failure and abandons the remaining waits.
//
// Parameters:
//   - ctx: Context for cancellation
//   - waiters: Processors to wait on
//   - expectedState: Target state for all processors
//   - timeout: Maximum time to wait for each processor
//
// Returns:
//   - error: nil if all processors reached the state, the first error otherwise
//
// Example:
//
//	err := testutil.WaitAllState(ctx, []testutil.StateWaiter{p1, p2}, types.StateRunning, 10*time.Second)
//	require.NoError(t, err)
func WaitAllState(ctx context.Context, waiters []StateWaiter, expectedState types.State, timeout time.Duration) error {
	if len(waiters) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	for i, w := range waiters {
		wg.Go(func() {
			select {
			case err := <-w.WaitState(expectedState, timeout):
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("processor[%d] failed to reach state %s: %w", i, expectedState, err)
						cancel()
					})
				}
			case <-ctx.Done():
			}
		})
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}

	return ctx.Err()
}

// WaitStates waits for a processor to pass through states in order.
//
// Parameters:
//   - ctx: Context for cancellation
//   - w: Processor to watch
//   - states: Sequence of states to wait for
//   - timeout: Maximum time to wait for each state
//
// Returns:
//   - error: nil if all states were reached, the first failure otherwise
func WaitStates(ctx context.Context, w StateWaiter, states []types.State, timeout time.Duration) error {
	for i, state := range states {
		select {
		case err := <-w.WaitState(state, timeout):
			if err != nil {
				return fmt.Errorf("failed to reach state[%d] %s: %w", i, state, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
