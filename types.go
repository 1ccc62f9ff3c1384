package leasefeed

import "github.com/arloliu/leasefeed/types"

// Re-export types from the types package.
//
// Internal packages depend on types only, never on the root package; these
// aliases give users leasefeed.Lease, leasefeed.Logger and so on.
type (
	State         = types.State
	Lease         = types.Lease
	LeaseVersion  = types.LeaseVersion
	LeaseState    = types.LeaseState
	FeedRange     = types.FeedRange
	Change        = types.Change
	Batch         = types.Batch
	FetchRequest  = types.FetchRequest
	CloseReason   = types.CloseReason
	LeaseSnapshot = types.LeaseSnapshot

	FeedRangeGoneError = types.FeedRangeGoneError
	ObserverContext    = types.ObserverContext
)

// Re-export interfaces from the types package.
type (
	ChangeFeedSource      = types.ChangeFeedSource
	ChangeFeedObserver    = types.ChangeFeedObserver
	ObserverFactory       = types.ObserverFactory
	ObserverFactoryFunc   = types.ObserverFactoryFunc
	ChangesHandlerFunc    = types.ChangesHandlerFunc
	LeaseContainer        = types.LeaseContainer
	LoadBalancingStrategy = types.LoadBalancingStrategy
	MetricsCollector      = types.MetricsCollector
	Logger                = types.Logger
	Hooks                 = types.Hooks
)

// Re-export State constants.
const (
	StateInit          = types.StateInit
	StateBootstrapping = types.StateBootstrapping
	StateRunning       = types.StateRunning
	StateShuttingDown  = types.StateShuttingDown
	StateStopped       = types.StateStopped
)

// Re-export CloseReason constants.
const (
	CloseReasonUnknown       = types.CloseReasonUnknown
	CloseReasonShutdown      = types.CloseReasonShutdown
	CloseReasonLeaseLost     = types.CloseReasonLeaseLost
	CloseReasonLeaseGone     = types.CloseReasonLeaseGone
	CloseReasonObserverError = types.CloseReasonObserverError
	CloseReasonStalled       = types.CloseReasonStalled
)
