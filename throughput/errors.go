package throughput

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for throughput control.
var (
	// ErrThroughputExceeded is matched by *ExceededError.
	ErrThroughputExceeded = errors.New("throughput exceeded")

	// ErrInvalidGroup is returned when a group definition is invalid.
	ErrInvalidGroup = errors.New("invalid throughput control group")

	// ErrDuplicateGroup is returned when a group name is registered twice for a container.
	ErrDuplicateGroup = errors.New("throughput control group already registered")

	// ErrDuplicateDefaultGroup is returned when a second default group is registered for a container.
	ErrDuplicateDefaultGroup = errors.New("default throughput control group already registered")

	// ErrNotStarted is returned when requests are processed before Start.
	ErrNotStarted = errors.New("throughput store not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("throughput store already started")

	// ErrCoordinatorUnavailable is returned when a global group has no coordination bucket.
	ErrCoordinatorUnavailable = errors.New("global throughput coordinator unavailable")
)

// ExceededError rejects a request of a group whose budget is used up.
type ExceededError struct {
	// Group is the name of the throttled group.
	Group string

	// RetryAfter is the time until the debt is expected to be paid off.
	// Zero when the group has no scheduled throughput.
	RetryAfter time.Duration
}

// Error implements error.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("throughput exceeded for group %q, retry after %s", e.Group, e.RetryAfter)
}

// Is matches ErrThroughputExceeded.
func (e *ExceededError) Is(target error) bool {
	return target == ErrThroughputExceeded
}
