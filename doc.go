// Package leasefeed distributes the ranges of a partitioned change feed across
// a fleet of processor hosts using leases stored in NATS JetStream KV.
//
// Every feed range is governed by one lease document. A host owns a range while
// it keeps renewing the lease; leases whose owner stops renewing expire and are
// taken by the other hosts. Each owned lease runs a supervisor that polls the
// feed from the lease's continuation, delivers batches to an observer and
// checkpoints the continuation back into the lease. When a range splits, the
// parent lease is replaced by one lease per child range, seeded with the
// parent's continuation, so no change is lost or delivered out of order within
// a range.
//
// # Quick Start
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	js, _ := jetstream.New(nc)
//	stream, _ := js.CreateStream(ctx, jetstream.StreamConfig{Name: "ORDERS", Subjects: []string{"orders.>"}})
//
//	topo, _ := feed.NewStaticTopology(
//	    leasefeed.FeedRange{ID: "0", Min: "", Max: "7F"},
//	    leasefeed.FeedRange{ID: "1", Min: "7F", Max: "FF"},
//	)
//	src := feed.NewJetStream(js, stream, "orders", topo)
//
//	observers := leasefeed.ObserverFactoryFunc(func() leasefeed.ChangeFeedObserver {
//	    return leasefeed.ChangesHandlerFunc(func(ctx context.Context, oc leasefeed.ObserverContext, changes []leasefeed.Change) error {
//	        return handle(oc.LeaseToken, changes)
//	    })
//	})
//
//	cfg := leasefeed.DefaultConfig()
//	proc, err := leasefeed.NewProcessor(&cfg, nc, src, observers)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := proc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer proc.Stop(context.Background())
//
// # Key Features
//
//   - Lease-based ownership: Optimistic concurrency on KV revisions, no leader
//   - Exactly-once bootstrap: One host creates the initial leases under a lock
//   - Split handling: Child leases inherit the parent continuation
//   - Load balancing: Pluggable strategies (equal partitions, consistent hash)
//   - Throughput control: Per-group request budgets, optionally shared globally
//
// # Architecture
//
// A processor progresses through a state machine:
//
//	INIT → BOOTSTRAPPING → RUNNING → SHUTTING_DOWN → STOPPED
//
// In RUNNING the load balancer periodically lists all leases, asks the strategy
// which ones to take, and hands them to the partition controller. The
// controller runs one supervisor per owned lease, renews the lease in the
// background and releases every lease on shutdown.
//
// # Throughput Control
//
// The throughput package meters feed fetches against request budgets:
//
//	store := throughput.NewStore()
//	_ = store.Register("orders", throughput.Group{Name: "feed", TargetThroughput: 500, IsDefault: true})
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers,
//	    leasefeed.WithThroughputControl(store, "orders", ""))
//
// # Custom Strategy
//
//	s := strategy.NewConsistentHash(strategy.WithVirtualNodes(300))
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers, leasefeed.WithStrategy(s))
//
// See the examples directory for a complete program.
package leasefeed
