package leasefeed

import (
	"errors"

	"github.com/arloliu/leasefeed/types"
)

// Sentinel errors returned by the Processor.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNATSConnectionRequired is returned when neither a NATS connection nor a lease container is given.
	ErrNATSConnectionRequired = errors.New("NATS connection is required")

	// ErrFeedSourceRequired is returned when the change feed source is nil.
	ErrFeedSourceRequired = errors.New("change feed source is required")

	// ErrObserverFactoryRequired is returned when the observer factory is nil.
	ErrObserverFactoryRequired = errors.New("observer factory is required")

	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("processor already started")

	// ErrNotStarted is returned when Stop is called on a processor that is not running.
	ErrNotStarted = errors.New("processor not started")
)

// Lease and feed faults, re-exported from the types package.
var (
	ErrLeaseLost        = types.ErrLeaseLost
	ErrFeedRangeGone    = types.ErrFeedRangeGone
	ErrTaskCancelled    = types.ErrTaskCancelled
	ErrPartitionStalled = types.ErrPartitionStalled
	ErrObserverFailed   = types.ErrObserverFailed
)
