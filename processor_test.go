package leasefeed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/feed"
	"github.com/arloliu/leasefeed/internal/lease"
	feedtest "github.com/arloliu/leasefeed/testing"
	"github.com/arloliu/leasefeed/throughput"
	"github.com/arloliu/leasefeed/types"
)

// collector records every delivered change across observers.
type collector struct {
	mu   sync.Mutex
	data map[string]int
}

func newCollector() *collector {
	return &collector{data: make(map[string]int)}
}

func (c *collector) factory() ObserverFactory {
	return ObserverFactoryFunc(func() ChangeFeedObserver {
		return ChangesHandlerFunc(func(_ context.Context, _ ObserverContext, changes []Change) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			for _, ch := range changes {
				c.data[string(ch.Data)]++
			}

			return nil
		})
	})
}

func (c *collector) has(data ...string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range data {
		if c.data[d] == 0 {
			return false
		}
	}

	return true
}

func fourRangeFeed(t *testing.T) *feed.Memory {
	t.Helper()

	topo, err := feed.NewStaticTopology(
		types.FeedRange{ID: "0", Min: "", Max: "40"},
		types.FeedRange{ID: "1", Min: "40", Max: "80"},
		types.FeedRange{ID: "2", Min: "80", Max: "C0"},
		types.FeedRange{ID: "3", Min: "C0", Max: "FF"},
	)
	require.NoError(t, err)

	return feed.NewMemory(topo)
}

func newTestProcessor(t *testing.T, host string, container LeaseContainer, src ChangeFeedSource, c *collector, opts ...Option) *Processor {
	t.Helper()

	cfg := TestConfig()
	cfg.HostName = host
	opts = append([]Option{WithLeaseContainer(container)}, opts...)

	p, err := NewProcessor(&cfg, nil, src, c.factory(), opts...)
	require.NoError(t, err)

	return p
}

func ownedTokens(p *Processor) []string {
	var out []string
	for _, l := range p.OwnedLeases() {
		out = append(out, l.LeaseToken)
	}
	sort.Strings(out)

	return out
}

func TestNewProcessor_Validation(t *testing.T) {
	src := fourRangeFeed(t)
	observers := newCollector().factory()
	container := lease.NewMemoryContainer()

	t.Run("nil config", func(t *testing.T) {
		_, err := NewProcessor(nil, nil, src, observers, WithLeaseContainer(container))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("nil source", func(t *testing.T) {
		_, err := NewProcessor(&Config{}, nil, nil, observers, WithLeaseContainer(container))
		require.ErrorIs(t, err, ErrFeedSourceRequired)
	})

	t.Run("nil observers", func(t *testing.T) {
		_, err := NewProcessor(&Config{}, nil, src, nil, WithLeaseContainer(container))
		require.ErrorIs(t, err, ErrObserverFactoryRequired)
	})

	t.Run("no lease storage", func(t *testing.T) {
		_, err := NewProcessor(&Config{}, nil, src, observers)
		require.ErrorIs(t, err, ErrNATSConnectionRequired)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := Config{VerificationFactor: 1}
		_, err := NewProcessor(&cfg, nil, src, observers, WithLeaseContainer(container))
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("defaults are applied", func(t *testing.T) {
		cfg := Config{}
		p, err := NewProcessor(&cfg, nil, src, observers, WithLeaseContainer(container))
		require.NoError(t, err)
		require.NotEmpty(t, p.HostName())
		require.Equal(t, StateInit, p.State())
		require.Nil(t, p.OwnedLeases())
	})
}

func TestProcessor_Lifecycle(t *testing.T) {
	p := newTestProcessor(t, "host-a", lease.NewMemoryContainer(), fourRangeFeed(t), newCollector())

	require.ErrorIs(t, p.Stop(t.Context()), ErrNotStarted)

	require.NoError(t, p.Start(t.Context()))
	require.Equal(t, StateRunning, p.State())
	require.NoError(t, <-p.WaitState(StateRunning, time.Second))
	require.ErrorIs(t, p.Start(t.Context()), ErrAlreadyStarted)

	require.NoError(t, p.Stop(t.Context()))
	require.Equal(t, StateStopped, p.State())
	require.ErrorIs(t, p.Stop(t.Context()), ErrNotStarted)
}

func TestProcessor_HostsShareAndHandOverLeases(t *testing.T) {
	container := lease.NewMemoryContainer()
	src := fourRangeFeed(t)
	c := newCollector()

	a := newTestProcessor(t, "host-a", container, src, c)
	b := newTestProcessor(t, "host-b", container, src, c)
	require.NoError(t, a.Start(t.Context()))
	require.NoError(t, b.Start(t.Context()))
	t.Cleanup(func() {
		_ = a.Stop(context.Background())
		_ = b.Stop(context.Background())
	})

	require.Eventually(t, func() bool {
		return len(a.OwnedLeases()) == 2 && len(b.OwnedLeases()) == 2
	}, 5*time.Second, 10*time.Millisecond, "leases are split evenly")

	for i := range 4 {
		_, err := src.Append(fmt.Sprint(i), fmt.Appendf(nil, "before-%d", i))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return c.has("before-0", "before-1", "before-2", "before-3")
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Stop(t.Context()))
	require.Eventually(t, func() bool {
		return len(a.OwnedLeases()) == 4
	}, 5*time.Second, 10*time.Millisecond, "released leases are taken over")
	require.Equal(t, []string{"0", "1", "2", "3"}, ownedTokens(a))

	for i := range 4 {
		_, err := src.Append(fmt.Sprint(i), fmt.Appendf(nil, "after-%d", i))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return c.has("after-0", "after-1", "after-2", "after-3")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestProcessor_SplitReplacesLease(t *testing.T) {
	container := lease.NewMemoryContainer()
	src := fourRangeFeed(t)
	c := newCollector()

	var (
		mu     sync.Mutex
		splits = map[string][]string{}
	)
	hooks := &Hooks{
		OnPartitionSplit: func(_ context.Context, parent string, children []string) error {
			mu.Lock()
			defer mu.Unlock()
			splits[parent] = children

			return nil
		},
	}

	p := newTestProcessor(t, "host-a", container, src, c, WithHooks(hooks))
	require.NoError(t, p.Start(t.Context()))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	require.Eventually(t, func() bool { return len(p.OwnedLeases()) == 4 }, 5*time.Second, 10*time.Millisecond)

	_, err := src.Append("0", []byte("parent"))
	require.NoError(t, err)
	require.NoError(t, src.Topology().Split("0",
		types.FeedRange{ID: "4", Min: "", Max: "20"},
		types.FeedRange{ID: "5", Min: "20", Max: "40"},
	))
	_, err = src.Append("4", []byte("child-4"))
	require.NoError(t, err)
	_, err = src.Append("5", []byte("child-5"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return c.has("parent", "child-4", "child-5")
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		tokens := ownedTokens(p)
		return len(tokens) == 5 && tokens[0] == "1"
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, ownedTokens(p))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(splits["0"]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestProcessor_ThroughputControl(t *testing.T) {
	src := fourRangeFeed(t)
	c := newCollector()

	store := throughput.NewStore(throughput.WithRenewInterval(20 * time.Millisecond))
	require.NoError(t, store.Register("orders", throughput.Group{Name: "feed", TargetThroughput: 5, IsDefault: true}))

	p := newTestProcessor(t, "host-a", lease.NewMemoryContainer(), src, c, WithThroughputControl(store, "orders", ""))
	require.NoError(t, p.Start(t.Context()))
	t.Cleanup(func() { _ = p.Stop(context.Background()) })

	for i := range 20 {
		_, err := src.Append(fmt.Sprint(i%4), fmt.Appendf(nil, "change-%d", i))
		require.NoError(t, err)
	}

	want := make([]string, 20)
	for i := range want {
		want[i] = fmt.Sprintf("change-%d", i)
	}
	require.Eventually(t, func() bool { return c.has(want...) }, 10*time.Second, 10*time.Millisecond,
		"throttled fetches are retried until every change is delivered")

	g, ok := store.Group("orders", "feed")
	require.True(t, ok)
	require.Positive(t, g.Throttler().ScheduledThroughput())

	require.NoError(t, p.Stop(t.Context()))
	require.ErrorIs(t, store.Stop(t.Context()), throughput.ErrNotStarted, "stopped with the processor")
}

func TestProcessor_NATSLeaseBucket(t *testing.T) {
	_, nc := feedtest.StartEmbeddedNATS(t)
	src := fourRangeFeed(t)
	c := newCollector()

	start := func(host string, conn *nats.Conn) *Processor {
		cfg := TestConfig()
		cfg.HostName = host
		cfg.LeaseBucket = "test-leases"

		p, err := NewProcessor(&cfg, conn, src, c.factory())
		require.NoError(t, err)
		require.NoError(t, p.Start(t.Context()))
		t.Cleanup(func() { _ = p.Stop(context.Background()) })

		return p
	}

	a := start("host-a", nc)
	require.Eventually(t, func() bool { return len(a.OwnedLeases()) == 4 }, 5*time.Second, 10*time.Millisecond)

	_, err := src.Append("2", []byte("over-nats"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.has("over-nats") }, 5*time.Second, 10*time.Millisecond)

	b := start("host-b", nc)
	require.Eventually(t, func() bool {
		return len(a.OwnedLeases()) == 2 && len(b.OwnedLeases()) == 2
	}, 10*time.Second, 10*time.Millisecond, "second host takes half of the leases")
}
