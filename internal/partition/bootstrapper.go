package partition

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// initStore is implemented by *lease.Store.
type initStore interface {
	IsInitialized(ctx context.Context) (bool, error)
	MarkInitialized(ctx context.Context) error
	AcquireInitializationLock(ctx context.Context, ttl time.Duration) (bool, error)
	ReleaseInitializationLock(ctx context.Context) error
}

// Bootstrapper creates the initial leases exactly once across all hosts.
type Bootstrapper struct {
	store      initStore
	sync       *Synchronizer
	lockTTL    time.Duration
	retryDelay time.Duration
	logger     types.Logger
}

// NewBootstrapper creates a bootstrapper.
//
// Parameters:
//   - store: Initialization marker and lock
//   - synchronizer: Creates the missing leases
//   - lockTTL: Expiry of the initialization lock
//   - retryDelay: Wait before retrying while another host holds the lock
//   - logger: Logger
//
// Returns:
//   - *Bootstrapper: Bootstrapper
func NewBootstrapper(store initStore, synchronizer *Synchronizer, lockTTL, retryDelay time.Duration, logger types.Logger) *Bootstrapper {
	return &Bootstrapper{
		store:      store,
		sync:       synchronizer,
		lockTTL:    lockTTL,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// Initialize returns once the lease collection is initialized.
//
// The host that wins the initialization lock creates the missing leases and
// sets the marker; the others wait and re-check. The call is idempotent.
//
// Returns:
//   - error: Store or synchronization error, or the cancellation error
func (b *Bootstrapper) Initialize(ctx context.Context) error {
	for {
		initialized, err := b.store.IsInitialized(ctx)
		if err != nil {
			return fmt.Errorf("failed to check initialization: %w", err)
		}
		if initialized {
			return nil
		}

		locked, err := b.store.AcquireInitializationLock(ctx, b.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire initialization lock: %w", err)
		}
		if !locked {
			b.logger.Info("another host is initializing leases, waiting", "retry_delay", b.retryDelay)
			if err := sleep(ctx, b.retryDelay); err != nil {
				return err
			}

			continue
		}

		return b.initializeLocked(ctx)
	}
}

func (b *Bootstrapper) initializeLocked(ctx context.Context) error {
	defer func() {
		if err := b.store.ReleaseInitializationLock(context.WithoutCancel(ctx)); err != nil {
			b.logger.Warn("failed to release initialization lock", "error", err)
		}
	}()

	b.logger.Info("initializing leases")
	if err := b.sync.CreateMissingLeases(ctx); err != nil {
		return err
	}

	if err := b.store.MarkInitialized(ctx); err != nil {
		return fmt.Errorf("failed to mark leases initialized: %w", err)
	}
	b.logger.Info("leases initialized")

	return nil
}
