package throughput

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startStore(t *testing.T, s *Store) {
	t.Helper()

	require.NoError(t, s.Start(t.Context()))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
}

func TestStore_Register(t *testing.T) {
	t.Run("second default group fails fast", func(t *testing.T) {
		s := NewStore()

		require.NoError(t, s.Register("orders", Group{Name: "ingest", TargetThroughput: 100, IsDefault: true}))
		require.NoError(t, s.Register("orders", Group{Name: "reports", TargetThroughput: 50}))

		err := s.Register("orders", Group{Name: "backfill", TargetThroughput: 10, IsDefault: true})
		require.ErrorIs(t, err, ErrDuplicateDefaultGroup)

		_, ok := s.Group("orders", "backfill")
		require.False(t, ok)
	})

	t.Run("duplicate name is rejected", func(t *testing.T) {
		s := NewStore()

		require.NoError(t, s.Register("orders", Group{Name: "ingest", TargetThroughput: 100}))
		require.ErrorIs(t, s.Register("orders", Group{Name: "ingest", TargetThroughput: 10}), ErrDuplicateGroup)
	})

	t.Run("defaults are per container", func(t *testing.T) {
		s := NewStore()

		require.NoError(t, s.Register("orders", Group{Name: "ingest", TargetThroughput: 100, IsDefault: true}))
		require.NoError(t, s.Register("users", Group{Name: "ingest", TargetThroughput: 100, IsDefault: true}))
	})

	t.Run("invalid groups", func(t *testing.T) {
		s := NewStore()

		require.ErrorIs(t, s.Register("", Group{Name: "g", TargetThroughput: 1}), ErrInvalidGroup)
		require.ErrorIs(t, s.Register("orders", Group{TargetThroughput: 1}), ErrInvalidGroup)
		require.ErrorIs(t, s.Register("orders", Group{Name: "a.b", TargetThroughput: 1}), ErrInvalidGroup)
		require.ErrorIs(t, s.Register("orders", Group{Name: "g"}), ErrInvalidGroup)
	})
}

func TestStore_ProcessRequest(t *testing.T) {
	t.Run("rejected before start", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Register("orders", Group{Name: "g", TargetThroughput: 100, IsDefault: true}))

		_, err := s.ProcessRequest(t.Context(), "orders", &Request{}, charge(1))
		require.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("resolves named group, then default, then passes through", func(t *testing.T) {
		m := &recordingMetrics{}
		s := NewStore(WithMetrics(m), WithRenewInterval(time.Hour))
		require.NoError(t, s.Register("orders", Group{Name: "ingest", TargetThroughput: 100, IsDefault: true}))
		require.NoError(t, s.Register("orders", Group{Name: "reports", TargetThroughput: 100}))
		startStore(t, s)

		_, err := s.ProcessRequest(t.Context(), "orders", &Request{Group: "reports"}, charge(10))
		require.NoError(t, err)
		_, err = s.ProcessRequest(t.Context(), "orders", &Request{Group: "unknown"}, charge(20))
		require.NoError(t, err)
		_, err = s.ProcessRequest(t.Context(), "orders", nil, charge(5))
		require.NoError(t, err)
		_, err = s.ProcessRequest(t.Context(), "users", &Request{}, charge(1000))
		require.NoError(t, err)

		reports, _ := s.Group("orders", "reports")
		ingest, _ := s.Group("orders", "ingest")
		require.InDelta(t, 90, reports.Throttler().AvailableThroughput(), 1e-9)
		require.InDelta(t, 75, ingest.Throttler().AvailableThroughput(), 1e-9)

		require.Equal(t, []decision{
			{group: "reports", allowed: true},
			{group: "ingest", allowed: true},
			{group: "ingest", allowed: true},
		}, m.recorded())
	})

	t.Run("rejection is recorded", func(t *testing.T) {
		m := &recordingMetrics{}
		s := NewStore(WithMetrics(m), WithRenewInterval(time.Hour))
		require.NoError(t, s.Register("orders", Group{Name: "g", TargetThroughput: 100, IsDefault: true}))
		startStore(t, s)

		_, err := s.ProcessRequest(t.Context(), "orders", &Request{}, charge(150))
		require.NoError(t, err)
		_, err = s.ProcessRequest(t.Context(), "orders", &Request{}, charge(1))
		require.ErrorIs(t, err, ErrThroughputExceeded)

		require.Equal(t, []decision{{group: "g", allowed: true}, {group: "g", allowed: false}}, m.recorded())
	})

	t.Run("priority comes from the group", func(t *testing.T) {
		s := NewStore(WithRenewInterval(time.Hour))
		require.NoError(t, s.Register("orders", Group{Name: "bulk", TargetThroughput: 100, PriorityLevel: PriorityLow}))
		startStore(t, s)

		req := &Request{Group: "bulk"}
		_, err := s.ProcessRequest(t.Context(), "orders", req, charge(1))
		require.NoError(t, err)
		require.Equal(t, PriorityLow, req.PriorityLevel)

		explicit := &Request{Group: "bulk", PriorityLevel: PriorityHigh}
		_, err = s.ProcessRequest(t.Context(), "orders", explicit, charge(1))
		require.NoError(t, err)
		require.Equal(t, PriorityHigh, explicit.PriorityLevel)
	})
}

func TestStore_RenewsCycles(t *testing.T) {
	m := &recordingMetrics{}
	s := NewStore(WithMetrics(m), WithRenewInterval(5*time.Millisecond))
	require.NoError(t, s.Register("orders", Group{Name: "g", TargetThroughput: 100, IsDefault: true}))
	startStore(t, s)

	_, err := s.ProcessRequest(t.Context(), "orders", &Request{}, charge(150))
	require.NoError(t, err)

	g, _ := s.Group("orders", "g")
	require.Eventually(t, func() bool {
		return g.Throttler().AvailableThroughput() == 100
	}, time.Second, time.Millisecond, "debt is paid off and the budget refilled")
	require.Positive(t, m.cycleCount("g"))

	_, err = s.ProcessRequest(t.Context(), "orders", &Request{}, charge(1))
	require.NoError(t, err)
}

func TestStore_RegisterAfterStart(t *testing.T) {
	m := &recordingMetrics{}
	s := NewStore(WithMetrics(m), WithRenewInterval(5*time.Millisecond))
	startStore(t, s)

	require.NoError(t, s.Register("orders", Group{Name: "late", TargetThroughput: 10, IsDefault: true}))
	require.Eventually(t, func() bool { return m.cycleCount("late") > 0 }, time.Second, time.Millisecond)
}

func TestStore_Lifecycle(t *testing.T) {
	s := NewStore()

	require.ErrorIs(t, s.Stop(t.Context()), ErrNotStarted)
	require.NoError(t, s.Start(t.Context()))
	require.ErrorIs(t, s.Start(t.Context()), ErrAlreadyStarted)
	require.NoError(t, s.Stop(t.Context()))
	require.ErrorIs(t, s.Stop(t.Context()), ErrNotStarted)
}

func TestStore_GlobalGroupWithoutCoordinator(t *testing.T) {
	t.Run("fails start", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, s.Register("orders", Group{Name: "g", TargetThroughput: 100, Global: true}))

		require.ErrorIs(t, s.Start(t.Context()), ErrCoordinatorUnavailable)

		_, err := s.ProcessRequest(t.Context(), "orders", &Request{Group: "g"}, charge(1))
		require.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("falls back to local budget", func(t *testing.T) {
		s := NewStore(WithRenewInterval(time.Hour))
		require.NoError(t, s.Register("orders", Group{Name: "g", TargetThroughput: 100, Global: true, ContinueOnInitError: true}))
		startStore(t, s)

		g, ok := s.Group("orders", "g")
		require.True(t, ok)
		require.False(t, g.IsGlobal())
		require.InDelta(t, 100, g.Throttler().ScheduledThroughput(), 1e-9)
	})
}
