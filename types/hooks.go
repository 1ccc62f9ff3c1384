package types

import "context"

// Hooks defines callbacks for lease lifecycle events.
//
// All hooks are optional and called asynchronously in background goroutines
// so they never block lease processing. Hook errors are logged but don't fail
// lease operations.
//
// Example:
//
//	hooks := &leasefeed.Hooks{
//	    OnLeaseAcquired: func(ctx context.Context, leaseToken string) error {
//	        log.Printf("processing %s", leaseToken)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnLeaseAcquired is called after this host acquired (or re-adopted) a lease.
	OnLeaseAcquired func(ctx context.Context, leaseToken string) error

	// OnLeaseReleased is called after this host stopped processing a lease.
	OnLeaseReleased func(ctx context.Context, leaseToken string, reason CloseReason) error

	// OnPartitionSplit is called after a split replaced a lease with child leases.
	OnPartitionSplit func(ctx context.Context, parent string, children []string) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
