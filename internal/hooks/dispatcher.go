package hooks

import (
	"context"
	"sync"

	"github.com/arloliu/leasefeed/types"
)

// Dispatcher invokes hooks in background goroutines and logs their errors.
//
// Hook callbacks never block lease processing. Close blocks until every
// in-flight callback returned; events dispatched after Close are dropped.
type Dispatcher struct {
	hooks  *types.Hooks
	logger types.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher for h; nil callbacks are treated as no-ops.
func NewDispatcher(h *types.Hooks, logger types.Logger) *Dispatcher {
	return &Dispatcher{hooks: WithDefaults(h), logger: logger}
}

func (d *Dispatcher) run(ctx context.Context, name string, fn func(ctx context.Context) error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Debug("hook dropped after close", "hook", name)

		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		if err := fn(context.WithoutCancel(ctx)); err != nil {
			d.logger.Warn("hook returned error", "hook", name, "error", err)
		}
	}()
}

// LeaseAcquired dispatches OnLeaseAcquired.
func (d *Dispatcher) LeaseAcquired(ctx context.Context, leaseToken string) {
	d.run(ctx, "OnLeaseAcquired", func(ctx context.Context) error {
		return d.hooks.OnLeaseAcquired(ctx, leaseToken)
	})
}

// LeaseReleased dispatches OnLeaseReleased.
func (d *Dispatcher) LeaseReleased(ctx context.Context, leaseToken string, reason types.CloseReason) {
	d.run(ctx, "OnLeaseReleased", func(ctx context.Context) error {
		return d.hooks.OnLeaseReleased(ctx, leaseToken, reason)
	})
}

// PartitionSplit dispatches OnPartitionSplit.
func (d *Dispatcher) PartitionSplit(ctx context.Context, parent string, children []string) {
	d.run(ctx, "OnPartitionSplit", func(ctx context.Context) error {
		return d.hooks.OnPartitionSplit(ctx, parent, children)
	})
}

// Error dispatches OnError.
func (d *Dispatcher) Error(ctx context.Context, err error) {
	d.run(ctx, "OnError", func(ctx context.Context) error {
		return d.hooks.OnError(ctx, err)
	})
}

// Close stops accepting events and blocks until all dispatched callbacks returned.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
}
