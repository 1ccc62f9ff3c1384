package partition

import (
	"context"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// LeaseManager is the subset of lease operations the partition pipeline uses.
//
// It is implemented by *lease.Manager.
type LeaseManager interface {
	HostName() string
	Version() types.LeaseVersion

	CreateLeaseIfNotExist(ctx context.Context, r types.FeedRange, continuation string) (*types.Lease, error)
	ReadByToken(ctx context.Context, leaseToken string) (*types.Lease, error)
	ListAllLeases(ctx context.Context) ([]*types.Lease, error)
	ListOwnedLeases(ctx context.Context) ([]*types.Lease, error)

	Acquire(ctx context.Context, l *types.Lease) (*types.Lease, error)
	Release(ctx context.Context, l *types.Lease) error
	Renew(ctx context.Context, l *types.Lease) (*types.Lease, error)
	Checkpoint(ctx context.Context, l *types.Lease, continuation string) (*types.Lease, error)
	UpdateProperties(ctx context.Context, l *types.Lease) (*types.Lease, error)
	Delete(ctx context.Context, l *types.Lease) error
}

// observerContext describes l to the user observer.
func observerContext(l *types.Lease) types.ObserverContext {
	return types.ObserverContext{
		LeaseToken: l.LeaseToken,
		Owner:      l.Owner,
		FeedRange:  l.Range(),
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
