package partition

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// renewer is implemented by *lease.Manager.
type renewer interface {
	Renew(ctx context.Context, l *types.Lease) (*types.Lease, error)
}

// Renewer keeps one owned lease alive by rewriting it on a fixed interval.
type Renewer struct {
	lease    *types.Lease
	leases   renewer
	interval time.Duration
	logger   types.Logger

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// NewRenewer creates a renewer for l.
//
// Parameters:
//   - l: Owned lease
//   - leases: Lease manager used to renew
//   - interval: Time between renewals
//   - logger: Logger
//
// Returns:
//   - *Renewer: Renewer ready to Run
func NewRenewer(l *types.Lease, leases renewer, interval time.Duration, logger types.Logger) *Renewer {
	return &Renewer{
		lease:    l.Clone(),
		leases:   leases,
		interval: interval,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run sleeps for the interval, then renews, until ctx is cancelled or the lease is lost.
//
// Renewal errors other than types.ErrLeaseLost are logged and retried on the
// next tick.
//
// Returns:
//   - error: types.ErrLeaseLost, or the cancellation error on a clean stop
func (r *Renewer) Run(ctx context.Context) error {
	defer close(r.done)

	for {
		if err := sleep(ctx, r.interval); err != nil {
			return err
		}

		renewed, err := r.leases.Renew(ctx, r.lease)
		switch {
		case err == nil:
			r.lease = renewed
			r.logger.Debug("lease renewed", "lease_token", r.lease.LeaseToken)
		case errors.Is(err, types.ErrLeaseLost):
			r.logger.Info("lease lost during renewal", "lease_token", r.lease.LeaseToken, "error", err)
			r.mu.Lock()
			r.err = err
			r.mu.Unlock()

			return err
		case types.IsCancellation(err) && ctx.Err() != nil:
			return ctx.Err()
		default:
			r.logger.Warn("lease renewal failed, retrying", "lease_token", r.lease.LeaseToken, "error", err)
		}
	}
}

// Interval returns the renewal interval.
func (r *Renewer) Interval() time.Duration {
	return r.interval
}

// Done is closed when Run returns.
func (r *Renewer) Done() <-chan struct{} {
	return r.done
}

// Err returns types.ErrLeaseLost once renewal found the lease taken.
func (r *Renewer) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}
