package leasefeed

import (
	"github.com/arloliu/leasefeed/throughput"
	"github.com/arloliu/leasefeed/types"
)

// Option configures a Processor with optional dependencies.
type Option func(*processorOptions)

// processorOptions holds optional Processor configuration.
type processorOptions struct {
	strategy   LoadBalancingStrategy
	hooks      *Hooks
	metrics    MetricsCollector
	logger     Logger
	container  types.LeaseContainer
	throughput *throughputOptions
}

type throughputOptions struct {
	store     *throughput.Store
	container string
	group     string
}

// WithStrategy sets the load balancing strategy.
//
// Parameters:
//   - strategy: LoadBalancingStrategy implementation (default: strategy.NewEqualPartitions
//     bounded by Config.MinScaleCount and Config.MaxScaleCount)
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	s := strategy.NewConsistentHash(strategy.WithVirtualNodes(300))
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers, leasefeed.WithStrategy(s))
func WithStrategy(strategy LoadBalancingStrategy) Option {
	return func(o *processorOptions) {
		o.strategy = strategy
	}
}

// WithHooks sets lifecycle event hooks.
//
// Parameters:
//   - hooks: Hooks structure with callback functions
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	hooks := &leasefeed.Hooks{
//	    OnPartitionSplit: func(ctx context.Context, parent string, children []string) error {
//	        log.Printf("%s split into %v", parent, children)
//	        return nil
//	    },
//	}
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers, leasefeed.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *processorOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	collector := leasefeed.NewPrometheusMetrics(prometheus.DefaultRegisterer, "leasefeed")
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers, leasefeed.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *processorOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers,
//	    leasefeed.WithLogger(leasefeed.NewSlogLogger(slog.Default())))
func WithLogger(logger Logger) Option {
	return func(o *processorOptions) {
		o.logger = logger
	}
}

// WithLeaseContainer stores leases in container instead of the NATS KV bucket
// named by Config.LeaseBucket. The NATS connection may then be nil.
//
// Parameters:
//   - container: Lease document store
//
// Returns:
//   - Option: Functional option for NewProcessor
func WithLeaseContainer(container LeaseContainer) Option {
	return func(o *processorOptions) {
		o.container = container
	}
}

// WithThroughputControl meters every feed fetch through a throughput control group.
//
// The processor starts and stops store together with itself. Each fetch is
// charged one unit per delivered change, and at least one unit. A rejected
// fetch is retried after Config.FeedPollDelay.
//
// Parameters:
//   - store: Throughput control store with the groups registered
//   - container: Target container the fetches are metered under
//   - group: Group name ("" = the container's default group)
//
// Returns:
//   - Option: Functional option for NewProcessor
//
// Example:
//
//	store := throughput.NewStore()
//	_ = store.Register("orders", throughput.Group{Name: "feed", TargetThroughput: 500, IsDefault: true})
//	proc, _ := leasefeed.NewProcessor(&cfg, nc, src, observers,
//	    leasefeed.WithThroughputControl(store, "orders", ""))
func WithThroughputControl(store *throughput.Store, container, group string) Option {
	return func(o *processorOptions) {
		if store == nil {
			o.throughput = nil
			return
		}
		o.throughput = &throughputOptions{store: store, container: container, group: group}
	}
}
