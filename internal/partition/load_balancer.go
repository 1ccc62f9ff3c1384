package partition

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leasefeed/types"
)

// leaseAdder is implemented by *Controller.
type leaseAdder interface {
	AddOrUpdateLease(ctx context.Context, l *types.Lease) error
}

// observation records when a lease's concurrency token was first seen.
type observation struct {
	token string
	since time.Time
}

// LoadBalancer periodically takes the leases a strategy selects.
//
// Liveness of other hosts is judged by their writes, not by clocks: a lease
// whose concurrency token did not change for the expiration interval, as
// observed by this host, is treated as expired.
type LoadBalancer struct {
	host       string
	leases     LeaseManager
	controller leaseAdder
	strategy   types.LoadBalancingStrategy
	interval   time.Duration
	expiration time.Duration
	logger     types.Logger
	now        func() time.Time

	seen *xsync.Map[string, observation]
}

// NewLoadBalancer creates a load balancer.
//
// Parameters:
//   - leases: Lease manager used to list leases
//   - controller: Receives the selected leases
//   - strategy: Decides which leases to take
//   - interval: Time between balancing rounds
//   - expiration: Time without a lease write after which its owner is considered gone
//   - logger: Logger
//
// Returns:
//   - *LoadBalancer: Load balancer ready to Run
func NewLoadBalancer(
	leases LeaseManager,
	controller leaseAdder,
	strategy types.LoadBalancingStrategy,
	interval, expiration time.Duration,
	logger types.Logger,
) *LoadBalancer {
	return &LoadBalancer{
		host:       leases.HostName(),
		leases:     leases,
		controller: controller,
		strategy:   strategy,
		interval:   interval,
		expiration: expiration,
		logger:     logger,
		now:        time.Now,
		seen:       xsync.NewMap[string, observation](),
	}
}

// Run balances immediately and then on every interval until ctx is cancelled.
//
// Returns:
//   - error: The cancellation error
func (b *LoadBalancer) Run(ctx context.Context) error {
	for {
		if err := b.Balance(ctx); err != nil && !types.IsCancellation(err) {
			b.logger.Warn("load balancing round failed", "error", err)
		}

		if err := sleep(ctx, b.interval); err != nil {
			return err
		}
	}
}

// Balance runs one balancing round.
//
// Returns:
//   - error: Listing error; acquisition errors are logged per lease
func (b *LoadBalancer) Balance(ctx context.Context) error {
	all, err := b.leases.ListAllLeases(ctx)
	if err != nil {
		return err
	}

	now := b.now()
	present := make(map[string]struct{}, len(all))
	snapshots := make([]types.LeaseSnapshot, 0, len(all))
	for _, l := range all {
		present[l.ID] = struct{}{}
		snapshots = append(snapshots, types.LeaseSnapshot{Lease: l, Expired: b.isExpired(l, now)})
	}

	b.seen.Range(func(id string, _ observation) bool {
		if _, ok := present[id]; !ok {
			b.seen.Delete(id)
		}

		return true
	})

	for _, l := range b.strategy.SelectLeasesToTake(b.host, snapshots) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.controller.AddOrUpdateLease(ctx, l); err != nil {
			b.logger.Warn("failed to take lease", "lease_token", l.LeaseToken, "owner", l.Owner, "error", err)
		}
	}

	return nil
}

// isExpired reports whether l is unowned or its owner stopped writing it.
func (b *LoadBalancer) isExpired(l *types.Lease, now time.Time) bool {
	if l.Owner == "" {
		return true
	}

	obs, ok := b.seen.Load(l.ID)
	if !ok || obs.token != l.ConcurrencyToken {
		b.seen.Store(l.ID, observation{token: l.ConcurrencyToken, since: now})
		return false
	}

	return now.Sub(obs.since) >= b.expiration
}
