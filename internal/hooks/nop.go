// Package hooks provides the default and dispatching implementations of types.Hooks.
package hooks

import (
	"context"

	"github.com/arloliu/leasefeed/types"
)

// NopHooks implements every hook callback as a no-op.
type NopHooks struct{}

var (
	_ func(context.Context, string) error                    = (*NopHooks)(nil).OnLeaseAcquired
	_ func(context.Context, string, types.CloseReason) error = (*NopHooks)(nil).OnLeaseReleased
	_ func(context.Context, string, []string) error          = (*NopHooks)(nil).OnPartitionSplit
	_ func(context.Context, error) error                     = (*NopHooks)(nil).OnError
)

// NewNop creates hooks whose callbacks do nothing.
//
// Returns:
//   - *types.Hooks: Hooks with every callback set
func NewNop() *types.Hooks {
	h := &NopHooks{}

	return &types.Hooks{
		OnLeaseAcquired:  h.OnLeaseAcquired,
		OnLeaseReleased:  h.OnLeaseReleased,
		OnPartitionSplit: h.OnPartitionSplit,
		OnError:          h.OnError,
	}
}

// OnLeaseAcquired is a no-op implementation.
func (h *NopHooks) OnLeaseAcquired(context.Context, string) error { return nil }

// OnLeaseReleased is a no-op implementation.
func (h *NopHooks) OnLeaseReleased(context.Context, string, types.CloseReason) error { return nil }

// OnPartitionSplit is a no-op implementation.
func (h *NopHooks) OnPartitionSplit(context.Context, string, []string) error { return nil }

// OnError is a no-op implementation.
func (h *NopHooks) OnError(context.Context, error) error { return nil }

// WithDefaults returns a copy of h whose nil callbacks are replaced by no-ops.
func WithDefaults(h *types.Hooks) *types.Hooks {
	nop := NewNop()
	if h == nil {
		return nop
	}

	out := *h
	if out.OnLeaseAcquired == nil {
		out.OnLeaseAcquired = nop.OnLeaseAcquired
	}
	if out.OnLeaseReleased == nil {
		out.OnLeaseReleased = nop.OnLeaseReleased
	}
	if out.OnPartitionSplit == nil {
		out.OnPartitionSplit = nop.OnPartitionSplit
	}
	if out.OnError == nil {
		out.OnError = nop.OnError
	}

	return &out
}
