package partition

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/internal/lease"
	"github.com/arloliu/leasefeed/internal/logging"
)

func TestBootstrapper_ConcurrentHostsInitializeOnce(t *testing.T) {
	src := newTestFeed(t)
	c := lease.NewMemoryContainer()

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i, host := range []string{"host-a", "host-b", "host-c"} {
		m := newTestLeases(c, host)
		b := NewBootstrapper(
			lease.NewStore(c, "test", host),
			NewSynchronizer(src, m, logging.NewNop()),
			time.Minute, time.Millisecond, logging.NewNop(),
		)
		wg.Go(func() { errs[i] = b.Initialize(t.Context()) })
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	all, err := newTestLeases(c, "reader").ListAllLeases(t.Context())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"0", "1"}, leaseTokens(all))

	initialized, err := lease.NewStore(c, "test", "reader").IsInitialized(t.Context())
	require.NoError(t, err)
	require.True(t, initialized)
}

func TestBootstrapper_WaitsForLockHolder(t *testing.T) {
	src := newTestFeed(t)
	c := lease.NewMemoryContainer()

	holder := lease.NewStore(c, "test", "host-b")
	locked, err := holder.AcquireInitializationLock(t.Context(), time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	b := NewBootstrapper(
		lease.NewStore(c, "test", "host-a"),
		NewSynchronizer(src, newTestLeases(c, "host-a"), logging.NewNop()),
		time.Minute, time.Millisecond, logging.NewNop(),
	)

	result := make(chan error, 1)
	go func() { result <- b.Initialize(t.Context()) }()

	select {
	case err := <-result:
		t.Fatalf("bootstrapper finished while lock was held: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, holder.MarkInitialized(t.Context()))
	require.NoError(t, holder.ReleaseInitializationLock(t.Context()))

	require.NoError(t, <-result)
}

func TestBootstrapper_Cancelled(t *testing.T) {
	c := lease.NewMemoryContainer()

	holder := lease.NewStore(c, "test", "host-b")
	_, err := holder.AcquireInitializationLock(t.Context(), time.Minute)
	require.NoError(t, err)

	b := NewBootstrapper(
		lease.NewStore(c, "test", "host-a"),
		NewSynchronizer(newTestFeed(t), newTestLeases(c, "host-a"), logging.NewNop()),
		time.Minute, time.Hour, logging.NewNop(),
	)

	ctx, cancel := context.WithCancel(t.Context())
	result := make(chan error, 1)
	go func() { result <- b.Initialize(ctx) }()
	cancel()

	require.ErrorIs(t, <-result, context.Canceled)
}
