package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leasefeed/cancellation"
	"github.com/arloliu/leasefeed/internal/hooks"
	"github.com/arloliu/leasefeed/types"
)

// Runner runs the work of one owned lease until it stops.
type Runner interface {
	Run(token cancellation.Token) error
}

// RunnerFactory creates the Runner of a freshly owned lease.
type RunnerFactory interface {
	CreateRunner(l *types.Lease) Runner
}

// RunnerFactoryFunc adapts a function into a RunnerFactory.
type RunnerFactoryFunc func(l *types.Lease) Runner

// CreateRunner implements RunnerFactory.
func (f RunnerFactoryFunc) CreateRunner(l *types.Lease) Runner { return f(l) }

// ErrControllerStopped is returned by AddOrUpdateLease after Shutdown.
var ErrControllerStopped = errors.New("partition controller stopped")

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// ReleaseTimeout bounds each release and delete issued when a lease stops.
	ReleaseTimeout time.Duration
}

// ownedLease is the controller's record of one lease.
type ownedLease struct {
	mu    sync.Mutex
	lease *types.Lease
	state types.LeaseState
}

func (o *ownedLease) set(state types.LeaseState, l *types.Lease) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = state
	if l != nil {
		o.lease = l
	}
}

func (o *ownedLease) snapshot() (*types.Lease, types.LeaseState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.lease, o.state
}

// Controller owns the set of leases this host processes.
//
// Each acquired lease gets a Runner (a Supervisor in production) that runs in
// its own goroutine under a cancellation source linked to the controller's
// root. When a runner stops, the controller either handles the split or
// releases the lease, so every lease is released or deleted exactly once.
type Controller struct {
	leases  LeaseManager
	sync    *Synchronizer
	runners RunnerFactory
	hooks   *hooks.Dispatcher
	metrics types.LeaseMetrics
	logger  types.Logger
	cfg     ControllerConfig

	root  *cancellation.Source
	owned *xsync.Map[string, *ownedLease]

	// mu orders runner registration against Shutdown
	mu sync.Mutex
	wg sync.WaitGroup
}

// NewController creates a controller.
//
// Parameters:
//   - leases: Lease manager
//   - synchronizer: Used to create child leases on split
//   - runners: Creates the runner of each owned lease
//   - dispatcher: Lifecycle hooks
//   - cfg: Release timeout
//   - logger: Logger
//   - metrics: Owned lease and split metrics
//
// Returns:
//   - *Controller: Controller ready to Initialize
func NewController(
	leases LeaseManager,
	synchronizer *Synchronizer,
	runners RunnerFactory,
	dispatcher *hooks.Dispatcher,
	cfg ControllerConfig,
	logger types.Logger,
	metrics types.LeaseMetrics,
) *Controller {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = 10 * time.Second
	}

	return &Controller{
		leases:  leases,
		sync:    synchronizer,
		runners: runners,
		hooks:   dispatcher,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		root:    cancellation.NewSource(),
		owned:   xsync.NewMap[string, *ownedLease](),
	}
}

// Initialize re-adopts the leases this host still owns from a previous run.
//
// The leases are not re-acquired; a lease another host took in the meantime
// fails its first renewal or checkpoint and is dropped then.
func (c *Controller) Initialize(ctx context.Context) error {
	owned, err := c.leases.ListOwnedLeases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list owned leases: %w", err)
	}

	for _, l := range owned {
		entry := &ownedLease{lease: l, state: types.LeaseStateOwned}
		if _, loaded := c.owned.LoadOrStore(l.LeaseToken, entry); loaded {
			continue
		}
		c.logger.Info("re-adopting owned lease", "lease_token", l.LeaseToken)
		c.hooks.LeaseAcquired(ctx, l.LeaseToken)
		c.startRunner(entry)
	}
	c.metrics.RecordOwnedLeases(c.owned.Size())

	return nil
}

// AddOrUpdateLease acquires l and starts processing it.
//
// The call returns as soon as ownership is confirmed. A lease that is already
// processed by this host gets its properties updated instead. Losing the
// acquire race is not an error.
//
// Returns:
//   - error: ErrControllerStopped after Shutdown, or a store error
func (c *Controller) AddOrUpdateLease(ctx context.Context, l *types.Lease) error {
	_, err := c.addLease(ctx, l)
	return err
}

// addLease reports whether l ended up processed by this host.
func (c *Controller) addLease(ctx context.Context, l *types.Lease) (bool, error) {
	if c.root.IsCancellationRequested() {
		return false, ErrControllerStopped
	}

	entry := &ownedLease{lease: l, state: types.LeaseStateDiscovered}
	if existing, loaded := c.owned.LoadOrStore(l.LeaseToken, entry); loaded {
		current, state := existing.snapshot()
		if state != types.LeaseStateProcessing {
			return true, nil
		}

		withProps := current.Clone()
		withProps.Properties = l.Properties
		updated, err := c.leases.UpdateProperties(ctx, withProps)
		if err != nil {
			if errors.Is(err, types.ErrLeaseLost) {
				c.logger.Info("lease lost while updating properties", "lease_token", l.LeaseToken)
				return true, nil
			}

			return true, err
		}
		existing.set(types.LeaseStateProcessing, updated)

		return true, nil
	}

	entry.set(types.LeaseStateAcquiring, nil)
	acquired, err := c.leases.Acquire(ctx, l)
	if err != nil {
		c.owned.Delete(l.LeaseToken)
		if errors.Is(err, types.ErrLeaseLost) {
			c.logger.Info("lease taken by another host", "lease_token", l.LeaseToken)
			return false, nil
		}

		return false, fmt.Errorf("failed to acquire lease %s: %w", l.LeaseToken, err)
	}

	entry.set(types.LeaseStateOwned, acquired)
	c.logger.Info("lease acquired", "lease_token", l.LeaseToken, "previous_owner", l.Owner)
	c.hooks.LeaseAcquired(ctx, l.LeaseToken)
	c.metrics.RecordOwnedLeases(c.owned.Size())

	if !c.startRunner(entry) {
		return false, ErrControllerStopped
	}

	return true, nil
}

// startRunner spawns the runner of entry. When the controller is shutting
// down the lease is released instead and startRunner reports false.
func (c *Controller) startRunner(entry *ownedLease) bool {
	l, _ := entry.snapshot()

	c.mu.Lock()
	src, err := cancellation.NewLinkedSource(c.root.Token())
	if err != nil {
		c.mu.Unlock()
		c.release(entry, types.CloseReasonShutdown)

		return false
	}
	c.wg.Add(1)
	c.mu.Unlock()

	runner := c.runners.CreateRunner(l)
	entry.set(types.LeaseStateProcessing, nil)

	go func() {
		defer c.wg.Done()
		defer src.Close()

		err := runner.Run(src.Token())
		c.handleCompletion(entry, err)
	}()

	return true
}

// handleCompletion routes a stopped runner to the split or the release path.
func (c *Controller) handleCompletion(entry *ownedLease, err error) {
	var gone *types.FeedRangeGoneError
	if errors.As(err, &gone) && !c.root.IsCancellationRequested() {
		c.handleSplit(entry)
		return
	}

	reason := CloseReasonOf(err)
	if reason != types.CloseReasonShutdown && reason != types.CloseReasonLeaseLost {
		c.hooks.Error(c.root.Token(), err)
	}
	c.release(entry, reason)
}

// handleSplit replaces a gone lease by its children.
//
// Children are acquired concurrently. The parent is deleted only when every
// child is covered (acquired here, or already owned by another host);
// otherwise it is released so that another host retries the split.
func (c *Controller) handleSplit(entry *ownedLease) {
	parent, _ := entry.snapshot()
	entry.set(types.LeaseStateGone, nil)
	ctx := c.root.Token()

	children, err := c.sync.SplitPartition(ctx, parent)
	if err != nil {
		c.logger.Error("failed to split lease", "lease_token", parent.LeaseToken, "error", err)
		c.hooks.Error(ctx, err)
		c.release(entry, types.CloseReasonLeaseGone)

		return
	}

	covered := make([]bool, len(children))
	var wg sync.WaitGroup
	for i, child := range children {
		wg.Go(func() {
			covered[i] = c.acquireChild(ctx, child)
		})
	}
	wg.Wait()

	tokens := make([]string, 0, len(children))
	for i, child := range children {
		if !covered[i] {
			c.logger.Warn("split incomplete, keeping parent lease",
				"lease_token", parent.LeaseToken, "child", child.LeaseToken)
			c.release(entry, types.CloseReasonLeaseGone)

			return
		}
		tokens = append(tokens, child.LeaseToken)
	}

	delCtx, cancel := context.WithTimeout(context.Background(), c.cfg.ReleaseTimeout)
	defer cancel()
	if err := c.leases.Delete(delCtx, parent); err != nil {
		c.logger.Warn("failed to delete split lease", "lease_token", parent.LeaseToken, "error", err)
	}

	c.owned.Delete(parent.LeaseToken)
	c.metrics.RecordOwnedLeases(c.owned.Size())
	c.metrics.RecordPartitionSplit(len(children))
	c.hooks.LeaseReleased(ctx, parent.LeaseToken, types.CloseReasonLeaseGone)
	c.hooks.PartitionSplit(ctx, parent.LeaseToken, tokens)
	c.logger.Info("split handled", "lease_token", parent.LeaseToken, "children", tokens)
}

// acquireChild reports whether child is covered after the attempt.
func (c *Controller) acquireChild(ctx context.Context, child *types.Lease) bool {
	if child.Owner != "" && child.Owner != c.leases.HostName() {
		c.logger.Info("child lease already owned", "lease_token", child.LeaseToken, "owner", child.Owner)
		return true
	}

	ok, err := c.addLease(ctx, child)
	if err != nil {
		c.logger.Warn("failed to acquire child lease", "lease_token", child.LeaseToken, "error", err)
		return false
	}

	return ok
}

// release clears ownership of entry's lease and forgets it.
func (c *Controller) release(entry *ownedLease, reason types.CloseReason) {
	l, _ := entry.snapshot()
	entry.set(types.LeaseStateReleasing, nil)

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReleaseTimeout)
	defer cancel()

	if err := c.leases.Release(ctx, l); err != nil {
		if errors.Is(err, types.ErrLeaseLost) {
			c.logger.Info("lease already released", "lease_token", l.LeaseToken, "reason", reason)
		} else {
			c.logger.Warn("failed to release lease", "lease_token", l.LeaseToken, "reason", reason, "error", err)
		}
	} else {
		c.logger.Info("lease released", "lease_token", l.LeaseToken, "reason", reason)
	}

	entry.set(types.LeaseStateReleased, nil)
	c.owned.Delete(l.LeaseToken)
	c.metrics.RecordOwnedLeases(c.owned.Size())
	c.hooks.LeaseReleased(ctx, l.LeaseToken, reason)
}

// Shutdown stops every runner and waits until their leases were released.
//
// Returns:
//   - error: ctx.Err() if the runners did not stop in time
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.root.Cancel()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("partition controller shutdown: %w", ctx.Err())
	}
}

// Token returns the controller's root cancellation token.
func (c *Controller) Token() cancellation.Token {
	return c.root.Token()
}

// OwnedLeases returns the leases currently processed by this host.
func (c *Controller) OwnedLeases() []*types.Lease {
	var out []*types.Lease
	c.owned.Range(func(_ string, entry *ownedLease) bool {
		if l, state := entry.snapshot(); state == types.LeaseStateProcessing {
			out = append(out, l.Clone())
		}

		return true
	})

	return out
}

// LeaseStates returns the tracked state of every known lease, keyed by lease token.
func (c *Controller) LeaseStates() map[string]types.LeaseState {
	out := make(map[string]types.LeaseState, c.owned.Size())
	c.owned.Range(func(token string, entry *ownedLease) bool {
		_, state := entry.snapshot()
		out[token] = state

		return true
	})

	return out
}
