package cancellation

import (
	"context"
	"errors"
)

var (
	// ErrIllegalState is returned when linking a new source under a cancelled parent.
	ErrIllegalState = errors.New("cancellation: parent already cancelled")

	// ErrCancelled is returned by Token.Err once cancellation was requested.
	// It is context.Canceled, so context-aware callers treat it as a clean stop.
	ErrCancelled = context.Canceled
)
