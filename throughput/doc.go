// Package throughput meters and throttles outbound requests per throughput
// control group.
//
// Each group has a budget (TargetThroughput) per cycle. A RequestThrottler
// lets a request through while budget remains and deducts the request's
// charge afterwards, so a cycle may end in debt. Debt carries into the next
// cycle; unused budget does not.
//
// A Store holds the groups registered per target container, resolves the
// group of each request and runs one GroupController per group that renews
// the cycle on a fixed interval. Groups marked Global share their budget with
// every other client of the same group through a GlobalCoordinator backed by
// a NATS JetStream KV bucket.
//
// Example:
//
//	store := throughput.NewStore(throughput.WithRenewInterval(time.Second))
//	_ = store.Register("orders", throughput.Group{Name: "ingest", TargetThroughput: 400, IsDefault: true})
//	_ = store.Start(ctx)
//	defer store.Stop(ctx)
//
//	resp, err := store.ProcessRequest(ctx, "orders", &throughput.Request{}, func(ctx context.Context) (throughput.Response, error) {
//	    return client.Read(ctx)
//	})
//	var exceeded *throughput.ExceededError
//	if errors.As(err, &exceeded) {
//	    time.Sleep(exceeded.RetryAfter)
//	}
package throughput
