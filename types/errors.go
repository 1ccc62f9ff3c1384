package types

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the leasefeed library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Lease errors - ownership and persistence outcomes of lease operations.
var (
	// ErrLeaseLost is returned when ownership was lost, or never held, at write time.
	// It is never retried automatically.
	ErrLeaseLost = errors.New("lease lost")

	// ErrLeaseNotFound is returned by a LeaseContainer when the document does not exist.
	ErrLeaseNotFound = errors.New("lease not found")

	// ErrLeaseConflict is returned by a LeaseContainer when creating a document that already exists.
	ErrLeaseConflict = errors.New("lease already exists")

	// ErrPreconditionFailed is returned by a LeaseContainer when the concurrency token is stale.
	ErrPreconditionFailed = errors.New("lease precondition failed")

	// ErrUnknownLeaseVersion is returned when a lease document carries an unsupported discriminant.
	ErrUnknownLeaseVersion = errors.New("unknown lease version")
)

// Feed errors - conditions reported by a ChangeFeedSource.
var (
	// ErrFeedRangeGone is matched by *FeedRangeGoneError: the range split or was retired.
	ErrFeedRangeGone = errors.New("feed range gone")

	// ErrPartitionSplit is returned by a source when the requested range was split.
	ErrPartitionSplit = errors.New("partition split")

	// ErrPartitionGone is returned by a source when the requested range no longer exists.
	ErrPartitionGone = errors.New("partition gone")

	// ErrSourceThrottled is returned by a source for transient overload; the caller retries.
	ErrSourceThrottled = errors.New("source throttled")
)

// Processing errors - terminal outcomes of partition supervision.
var (
	// ErrPartitionStalled is returned when a partition made no progress for a whole verification window.
	ErrPartitionStalled = errors.New("partition processing stalled")

	// ErrObserverFailed wraps errors returned by the user observer.
	ErrObserverFailed = errors.New("observer failed")

	// ErrTaskCancelled is the clean-stop outcome of an operation that observed cancellation.
	// It is context.Canceled so both checks succeed.
	ErrTaskCancelled = context.Canceled
)

// FeedRangeGoneError reports that a lease's range split or disappeared.
//
// It carries the last checkpointed continuation for diagnostics and matches
// ErrFeedRangeGone with errors.Is.
type FeedRangeGoneError struct {
	// LeaseToken is the token of the lease whose range is gone.
	LeaseToken string

	// Continuation is the last known continuation of the range.
	Continuation string

	// Split is true when the source reported child ranges.
	Split bool

	// Err is the underlying source error.
	Err error
}

// Error implements error.
func (e *FeedRangeGoneError) Error() string {
	return fmt.Sprintf("feed range gone: lease %s (split=%t, continuation=%q)", e.LeaseToken, e.Split, e.Continuation)
}

// Is matches ErrFeedRangeGone.
func (e *FeedRangeGoneError) Is(target error) bool {
	return target == ErrFeedRangeGone
}

// Unwrap returns the underlying source error.
func (e *FeedRangeGoneError) Unwrap() error {
	return e.Err
}

// IsCancellation reports whether err is a clean stop caused by cancellation.
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true for context cancellation and deadline errors
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
