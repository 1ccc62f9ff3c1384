package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// DefaultRetryCount bounds how often a write is re-applied after a precondition failure.
const DefaultRetryCount = 5

// MutateFunc applies a change to the current server copy of a lease.
//
// It receives a private copy and returns the lease to write. Ownership
// checks belong here: returning types.ErrLeaseLost aborts the update.
type MutateFunc func(current *types.Lease) (*types.Lease, error)

// Updater funnels every lease write through read-check-write with optimistic concurrency.
type Updater struct {
	container  types.LeaseContainer
	retryCount int
	logger     types.Logger
	now        func() time.Time
}

// NewUpdater creates an updater.
//
// Parameters:
//   - container: Lease document store
//   - retryCount: Re-read attempts after a precondition failure (DefaultRetryCount if <= 0)
//   - logger: Logger for retry diagnostics
//
// Returns:
//   - *Updater: Lease updater
func NewUpdater(container types.LeaseContainer, retryCount int, logger types.Logger) *Updater {
	if retryCount <= 0 {
		retryCount = DefaultRetryCount
	}

	return &Updater{container: container, retryCount: retryCount, logger: logger, now: time.Now}
}

// UpdateLease applies mutate to cached and writes the result guarded by its concurrency token.
//
// When the write fails its precondition, the current server copy is read and
// mutate is applied again, up to the retry count. The context is checked
// before every write so a cancelled caller never writes stale state.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cached: Caller's copy of the lease (not modified)
//   - mutate: Change to apply, including the ownership check
//
// Returns:
//   - *types.Lease: Written lease carrying the new concurrency token
//   - error: types.ErrLeaseLost when the lease is gone, stolen or retries ran out;
//     the context error when cancelled; the store error otherwise
func (u *Updater) UpdateLease(ctx context.Context, cached *types.Lease, mutate MutateFunc) (*types.Lease, error) {
	current := cached.Clone()

	for attempt := 0; ; attempt++ {
		next, err := mutate(current.Clone())
		if err != nil {
			return nil, err
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next.Timestamp = u.now()
		data, err := next.Encode()
		if err != nil {
			return nil, fmt.Errorf("failed to encode lease %s: %w", next.LeaseToken, err)
		}

		token, err := u.container.ReplaceItem(ctx, next.ID, data, next.ConcurrencyToken)
		if err == nil {
			next.ConcurrencyToken = token
			return next, nil
		}

		switch {
		case errors.Is(err, types.ErrLeaseNotFound):
			return nil, fmt.Errorf("%w: lease %s was deleted", types.ErrLeaseLost, cached.LeaseToken)
		case !errors.Is(err, types.ErrPreconditionFailed):
			return nil, fmt.Errorf("failed to write lease %s: %w", cached.LeaseToken, err)
		}

		if attempt >= u.retryCount {
			return nil, fmt.Errorf("%w: lease %s kept changing after %d retries", types.ErrLeaseLost, cached.LeaseToken, u.retryCount)
		}

		u.logger.Debug("lease changed concurrently, re-reading",
			"lease_token", cached.LeaseToken,
			"attempt", attempt+1,
		)

		current, err = u.read(ctx, cached.ID)
		if err != nil {
			if errors.Is(err, types.ErrLeaseNotFound) {
				return nil, fmt.Errorf("%w: lease %s was deleted", types.ErrLeaseLost, cached.LeaseToken)
			}

			return nil, err
		}
	}
}

func (u *Updater) read(ctx context.Context, id string) (*types.Lease, error) {
	item, err := u.container.ReadItem(ctx, id)
	if err != nil {
		return nil, err
	}

	return types.DecodeLease(item.Data, item.ConcurrencyToken)
}
