package partition

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/internal/lease"
	"github.com/arloliu/leasefeed/internal/logging"
	"github.com/arloliu/leasefeed/types"
)

type renewFunc func(ctx context.Context, l *types.Lease) (*types.Lease, error)

func (f renewFunc) Renew(ctx context.Context, l *types.Lease) (*types.Lease, error) { return f(ctx, l) }

func TestRenewer_RenewsPeriodically(t *testing.T) {
	m := newTestLeases(lease.NewMemoryContainer(), "host-a")
	l := createAndAcquire(t, m, "0", "")

	r := NewRenewer(l, m, 5*time.Millisecond, logging.NewNop())
	require.Equal(t, 5*time.Millisecond, r.Interval())

	ctx, cancel := context.WithCancel(t.Context())
	result := make(chan error, 1)
	go func() { result <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		stored, err := m.ReadByToken(t.Context(), "0")
		return err == nil && stored.ConcurrencyToken != l.ConcurrencyToken
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-result, context.Canceled)
	require.NoError(t, r.Err())
}

func TestRenewer_StopsOnLeaseLost(t *testing.T) {
	c := lease.NewMemoryContainer()
	m := newTestLeases(c, "host-a")
	l := createAndAcquire(t, m, "0", "")

	require.NoError(t, m.Release(t.Context(), l))

	r := NewRenewer(l, m, time.Millisecond, logging.NewNop())

	require.ErrorIs(t, r.Run(t.Context()), types.ErrLeaseLost)
	require.ErrorIs(t, r.Err(), types.ErrLeaseLost)

	select {
	case <-r.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestRenewer_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	fake := renewFunc(func(_ context.Context, l *types.Lease) (*types.Lease, error) {
		switch calls.Add(1) {
		case 1, 2:
			return nil, errors.New("store unavailable")
		case 3:
			return l, nil
		default:
			return nil, types.ErrLeaseLost
		}
	})

	r := NewRenewer(&types.Lease{LeaseToken: "0"}, fake, time.Millisecond, logging.NewNop())

	require.ErrorIs(t, r.Run(t.Context()), types.ErrLeaseLost)
	require.Equal(t, int32(4), calls.Load())
}

func TestRenewer_CancelledBeforeFirstTick(t *testing.T) {
	var calls atomic.Int32
	fake := renewFunc(func(_ context.Context, l *types.Lease) (*types.Lease, error) {
		calls.Add(1)
		return l, nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	r := NewRenewer(&types.Lease{LeaseToken: "0"}, fake, time.Hour, logging.NewNop())

	require.ErrorIs(t, r.Run(ctx), context.Canceled)
	require.Zero(t, calls.Load())
}
