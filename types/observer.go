package types

import "context"

// CloseReason explains why an observer was closed.
type CloseReason int

const (
	// CloseReasonUnknown is the zero value.
	CloseReasonUnknown CloseReason = iota

	// CloseReasonShutdown means the host is stopping.
	CloseReasonShutdown

	// CloseReasonLeaseLost means another host took the lease.
	CloseReasonLeaseLost

	// CloseReasonLeaseGone means the range split or was retired.
	CloseReasonLeaseGone

	// CloseReasonObserverError means ProcessChanges returned an error.
	CloseReasonObserverError

	// CloseReasonStalled means the partition made no progress for a verification window.
	CloseReasonStalled
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonShutdown:
		return "Shutdown"
	case CloseReasonLeaseLost:
		return "LeaseLost"
	case CloseReasonLeaseGone:
		return "LeaseGone"
	case CloseReasonObserverError:
		return "ObserverError"
	case CloseReasonStalled:
		return "Stalled"
	default:
		return "Unknown"
	}
}

// ObserverContext describes the lease an observer is bound to.
type ObserverContext struct {
	// LeaseToken identifies the range being processed.
	LeaseToken string

	// Owner is the host processing the range.
	Owner string

	// FeedRange is the range being processed.
	FeedRange FeedRange
}

// ChangeFeedObserver receives the changes of one lease.
//
// One observer instance is created per supervised lease. ProcessChanges is
// invoked synchronously per non-empty batch, in feed order; the batch is
// checkpointed only after it returns nil. Delivery is at-least-once, so
// implementations should be idempotent.
type ChangeFeedObserver interface {
	// Open is called once before the first batch is delivered.
	Open(ctx context.Context, oc ObserverContext) error

	// ProcessChanges handles one batch. A non-nil error abandons the lease.
	ProcessChanges(ctx context.Context, oc ObserverContext, changes []Change) error

	// Close is called once after processing of the lease stops.
	Close(ctx context.Context, oc ObserverContext, reason CloseReason) error
}

// ObserverFactory creates one observer per supervised lease.
type ObserverFactory interface {
	CreateObserver() ChangeFeedObserver
}

// ObserverFactoryFunc is a function adapter for ObserverFactory.
type ObserverFactoryFunc func() ChangeFeedObserver

// CreateObserver implements ObserverFactory.
func (f ObserverFactoryFunc) CreateObserver() ChangeFeedObserver { return f() }

// ChangesHandlerFunc adapts a plain function into a ChangeFeedObserver with no-op Open and Close.
type ChangesHandlerFunc func(ctx context.Context, oc ObserverContext, changes []Change) error

// Open implements ChangeFeedObserver.
func (f ChangesHandlerFunc) Open(context.Context, ObserverContext) error { return nil }

// ProcessChanges implements ChangeFeedObserver.
func (f ChangesHandlerFunc) ProcessChanges(ctx context.Context, oc ObserverContext, changes []Change) error {
	return f(ctx, oc, changes)
}

// Close implements ChangeFeedObserver.
func (f ChangesHandlerFunc) Close(context.Context, ObserverContext, CloseReason) error { return nil }
