//go:build integration

package integration_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed"
	"github.com/arloliu/leasefeed/feed"
	feedtest "github.com/arloliu/leasefeed/testing"
	"github.com/arloliu/leasefeed/test/testutil"
	"github.com/arloliu/leasefeed/types"
)

// deliveries counts every change delivered per payload.
type deliveries struct {
	mu    sync.Mutex
	count map[string]int
}

func (d *deliveries) factory() leasefeed.ObserverFactory {
	return leasefeed.ObserverFactoryFunc(func() leasefeed.ChangeFeedObserver {
		return leasefeed.ChangesHandlerFunc(func(_ context.Context, _ leasefeed.ObserverContext, changes []leasefeed.Change) error {
			d.mu.Lock()
			defer d.mu.Unlock()
			for _, c := range changes {
				d.count[string(c.Data)]++
			}

			return nil
		})
	})
}

func (d *deliveries) all(payloads []string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range payloads {
		if d.count[p] == 0 {
			return false
		}
	}

	return true
}

func TestProcessors_JetStreamFeed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, nc := feedtest.StartEmbeddedNATS(t)
	js := feedtest.NewJetStream(t, nc)
	stream := feedtest.CreateStream(t, nc, "ORDERS", "orders")

	topo, err := feed.NewStaticTopology(
		types.FeedRange{ID: "0", Min: "", Max: "40"},
		types.FeedRange{ID: "1", Min: "40", Max: "80"},
		types.FeedRange{ID: "2", Min: "80", Max: "C0"},
		types.FeedRange{ID: "3", Min: "C0", Max: "FF"},
	)
	require.NoError(t, err)
	src := feed.NewJetStream(js, stream, "orders", topo)

	got := &deliveries{count: make(map[string]int)}

	processors := make([]*leasefeed.Processor, 3)
	for i := range processors {
		cfg := leasefeed.TestConfig()
		cfg.HostName = fmt.Sprintf("host-%d", i)
		cfg.LeaseBucket = "integration-leases"

		p, err := leasefeed.NewProcessor(&cfg, nc, src, got.factory(),
			leasefeed.WithLogger(feedtest.NewTestLogger(t)))
		require.NoError(t, err)
		require.NoError(t, p.Start(t.Context()))
		t.Cleanup(func() { _ = p.Stop(context.Background()) })
		processors[i] = p
	}

	waiters := make([]testutil.StateWaiter, len(processors))
	owners := make([]testutil.LeaseOwner, len(processors))
	for i, p := range processors {
		waiters[i] = p
		owners[i] = p
	}
	require.NoError(t, testutil.WaitAllState(t.Context(), waiters, types.StateRunning, 5*time.Second))

	require.Eventually(t, func() bool {
		return testutil.LeasesConsistent(owners, []string{"0", "1", "2", "3"})
	}, 10*time.Second, 20*time.Millisecond)

	var payloads []string
	publish := func(rangeID, payload string) {
		_, err := src.Publish(t.Context(), rangeID, []byte(payload))
		require.NoError(t, err)
		payloads = append(payloads, payload)
	}
	for i := range 12 {
		publish(fmt.Sprint(i%4), fmt.Sprintf("before-split-%d", i))
	}
	require.Eventually(t, func() bool { return got.all(payloads) }, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, topo.Split("3",
		types.FeedRange{ID: "4", Min: "C0", Max: "E0"},
		types.FeedRange{ID: "5", Min: "E0", Max: "FF"},
	))
	publish("4", "after-split-4")
	publish("5", "after-split-5")

	require.Eventually(t, func() bool {
		return got.all(payloads) && testutil.LeasesConsistent(owners, []string{"0", "1", "2", "4", "5"})
	}, 10*time.Second, 20*time.Millisecond, "children replace the split range")

	require.NoError(t, processors[0].Stop(t.Context()))
	rest := owners[1:]
	require.Eventually(t, func() bool {
		return testutil.LeasesConsistent(rest, []string{"0", "1", "2", "4", "5"})
	}, 10*time.Second, 20*time.Millisecond, "leases of the stopped host are taken over")
	testutil.AssertLeasesConsistent(t, rest, []string{"0", "1", "2", "4", "5"})
}
