package lease

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStore_InitializationMarker(t *testing.T) {
	for name, factory := range containerFactories {
		t.Run(name, func(t *testing.T) {
			s := NewStore(factory(t), "test", "host-a")

			ok, err := s.IsInitialized(t.Context())
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, s.MarkInitialized(t.Context()))
			require.NoError(t, s.MarkInitialized(t.Context()))

			ok, err = s.IsInitialized(t.Context())
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestStore_InitializationLock(t *testing.T) {
	for name, factory := range containerFactories {
		t.Run(name, func(t *testing.T) {
			c := factory(t)
			a := NewStore(c, "test", "host-a")
			b := NewStore(c, "test", "host-b")

			got, err := a.AcquireInitializationLock(t.Context(), time.Minute)
			require.NoError(t, err)
			require.True(t, got)

			got, err = b.AcquireInitializationLock(t.Context(), time.Minute)
			require.NoError(t, err)
			require.False(t, got)

			require.ErrorIs(t, b.ReleaseInitializationLock(t.Context()), ErrLockNotHeld)
			require.NoError(t, a.ReleaseInitializationLock(t.Context()))

			got, err = b.AcquireInitializationLock(t.Context(), time.Minute)
			require.NoError(t, err)
			require.True(t, got)
		})
	}
}

func TestStore_ExpiredLockIsTakenOver(t *testing.T) {
	c := NewMemoryContainer()
	a := NewStore(c, "test", "host-a")
	b := NewStore(c, "test", "host-b")

	got, err := a.AcquireInitializationLock(t.Context(), time.Second)
	require.NoError(t, err)
	require.True(t, got)

	b.now = func() time.Time { return time.Now().Add(2 * time.Second) }

	got, err = b.AcquireInitializationLock(t.Context(), time.Minute)
	require.NoError(t, err)
	require.True(t, got)

	// the crashed holder can no longer release what it lost
	require.ErrorIs(t, a.ReleaseInitializationLock(t.Context()), ErrLockNotHeld)
}

func TestStore_KeysDoNotCollideWithLeases(t *testing.T) {
	c := NewMemoryContainer()
	s := NewStore(c, "test", "host-a")

	require.NoError(t, s.MarkInitialized(t.Context()))
	_, err := s.AcquireInitializationLock(t.Context(), time.Minute)
	require.NoError(t, err)

	items, err := c.QueryItemsByPrefix(t.Context(), Prefix("test"))
	require.NoError(t, err)
	require.Empty(t, items)
}
