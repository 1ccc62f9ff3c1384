package leasefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leasefeed/internal/hooks"
	"github.com/arloliu/leasefeed/internal/kvutil"
	"github.com/arloliu/leasefeed/internal/lease"
	"github.com/arloliu/leasefeed/internal/logging"
	"github.com/arloliu/leasefeed/internal/metrics"
	"github.com/arloliu/leasefeed/internal/partition"
	"github.com/arloliu/leasefeed/strategy"
	"github.com/arloliu/leasefeed/throughput"
	"github.com/arloliu/leasefeed/types"
)

// Processor consumes a partitioned change feed cooperatively with other hosts.
//
// Processor is the main entry point of the leasefeed library. It handles:
//   - Bootstrapping one lease per feed range, exactly once across hosts
//   - Acquiring unowned and orphaned leases through a load balancing strategy
//   - Supervising one processor, renewer and liveness check per owned lease
//   - Replacing split ranges with child leases
//   - Releasing every owned lease on shutdown
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - State transitions are atomic
//
// Lifecycle:
//   - Create with NewProcessor()
//   - Call Start() to bootstrap leases and begin processing
//   - Call Stop() for graceful shutdown; a stopped Processor cannot be restarted
type Processor struct {
	cfg       Config
	version   types.LeaseVersion
	conn      *nats.Conn
	source    types.ChangeFeedSource
	observers types.ObserverFactory

	strategy   LoadBalancingStrategy
	hooks      *hooks.Dispatcher
	metrics    MetricsCollector
	logger     Logger
	container  types.LeaseContainer
	throughput *throughputOptions

	controller *partition.Controller
	balancer   *partition.LoadBalancer

	state  atomic.Int32 // State
	mu     sync.Mutex
	begun  bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates a Processor.
//
// Parameters:
//   - cfg: Configuration; missing values are filled with defaults
//   - conn: NATS connection for the lease bucket (may be nil with WithLeaseContainer)
//   - source: Change feed to consume
//   - observers: Creates one observer per owned lease
//   - opts: Optional configuration (strategy, hooks, metrics, logger, lease container, throughput control)
//
// Returns:
//   - *Processor: Initialized processor
//   - error: Validation error if configuration or arguments are invalid
//
// Example:
//
//	cfg := leasefeed.Config{HostName: "host-a"}
//	src := feed.NewJetStream(js, stream, "orders", topology)
//	observers := leasefeed.ObserverFactoryFunc(func() leasefeed.ChangeFeedObserver {
//	    return leasefeed.ChangesHandlerFunc(handle)
//	})
//	proc, err := leasefeed.NewProcessor(&cfg, nc, src, observers)
func NewProcessor(cfg *Config, conn *nats.Conn, source ChangeFeedSource, observers ObserverFactory, opts ...Option) (*Processor, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if source == nil {
		return nil, ErrFeedSourceRequired
	}
	if observers == nil {
		return nil, ErrObserverFactoryRequired
	}

	options := &processorOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if conn == nil && options.container == nil {
		return nil, ErrNATSConnectionRequired
	}

	SetDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version, err := cfg.leaseVersion()
	if err != nil {
		return nil, err
	}

	metricsCollector := options.metrics
	if metricsCollector == nil {
		metricsCollector = metrics.NewNop()
	}

	loggerInstance := options.logger
	if loggerInstance == nil {
		loggerInstance = logging.NewNop()
	}
	loggerInstance = logging.With(loggerInstance, "host", cfg.HostName)

	cfg.ValidateWithWarnings(loggerInstance)

	balancing := options.strategy
	if balancing == nil {
		balancing, err = strategy.NewEqualPartitions(
			strategy.WithMinScale(cfg.MinScaleCount),
			strategy.WithMaxScale(cfg.MaxScaleCount),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	p := &Processor{
		cfg:        *cfg,
		version:    version,
		conn:       conn,
		source:     source,
		observers:  observers,
		strategy:   balancing,
		hooks:      hooks.NewDispatcher(options.hooks, loggerInstance),
		metrics:    metricsCollector,
		logger:     loggerInstance,
		container:  options.container,
		throughput: options.throughput,
	}
	p.state.Store(int32(StateInit))

	return p, nil
}

// Start bootstraps the leases, re-adopts the ones this host still owns and
// starts the load balancer.
//
// Blocks until the lease collection is initialized. Processing of leases
// continues in the background until Stop.
//
// Parameters:
//   - ctx: Context for cancellation of the startup sequence
//
// Returns:
//   - error: ErrAlreadyStarted, or the startup error
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.begun {
		return ErrAlreadyStarted
	}
	p.begun = true

	startupCtx, cancel := context.WithTimeout(ctx, p.cfg.StartupTimeout)
	defer cancel()

	p.transitionState(StateInit, StateBootstrapping)

	if err := p.start(startupCtx); err != nil {
		p.transitionState(StateBootstrapping, StateStopped)
		return err
	}

	p.transitionState(StateBootstrapping, StateRunning)

	return nil
}

func (p *Processor) start(ctx context.Context) error {
	container, err := p.leaseContainer(ctx)
	if err != nil {
		return err
	}

	leases := lease.NewManager(container, lease.ManagerConfig{
		HostName: p.cfg.HostName,
		Prefix:   p.cfg.LeasePrefix,
		Version:  p.version,
	}, p.logger, p.metrics)

	source := p.source
	if p.throughput != nil {
		if err := p.throughput.store.Start(ctx); err != nil {
			return fmt.Errorf("failed to start throughput control: %w", err)
		}
		source = newThrottledSource(source, p.throughput)
	}

	synchronizer := partition.NewSynchronizer(source, leases, p.logger)
	bootstrapper := partition.NewBootstrapper(
		lease.NewStore(container, p.cfg.LeasePrefix, p.cfg.HostName),
		synchronizer,
		p.cfg.InitializationLockTTL,
		p.cfg.BootstrapRetryDelay,
		p.logger,
	)
	if err := bootstrapper.Initialize(ctx); err != nil {
		p.stopThroughput(ctx)
		return fmt.Errorf("failed to initialize leases: %w", err)
	}

	runners := partition.NewSupervisorFactory(source, leases, p.observers, partition.SupervisorFactoryConfig{
		Processor: partition.ProcessorConfig{
			PollDelay:          p.cfg.FeedPollDelay,
			MaxItems:           p.cfg.MaxItemCount,
			StartFromBeginning: p.cfg.StartFromBeginning,
		},
		Supervisor: partition.SupervisorConfig{
			CheckInterval:       p.cfg.SupervisorCheckInterval,
			VerificationFactor:  p.cfg.VerificationFactor,
			VerificationEpsilon: p.cfg.VerificationEpsilon,
		},
		RenewInterval: p.cfg.LeaseRenewInterval,
	}, p.logger, p.metrics)

	p.controller = partition.NewController(leases, synchronizer, runners, p.hooks,
		partition.ControllerConfig{ReleaseTimeout: p.cfg.OperationTimeout}, p.logger, p.metrics)
	if err := p.controller.Initialize(ctx); err != nil {
		p.shutdownController(ctx)
		p.stopThroughput(ctx)

		return err
	}

	p.balancer = partition.NewLoadBalancer(leases, p.controller, p.strategy,
		p.cfg.LeaseAcquireInterval, p.cfg.LeaseExpirationInterval, p.logger)

	runCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Go(func() { _ = p.balancer.Run(runCtx) })

	return nil
}

// leaseContainer returns the injected container or opens the lease bucket.
func (p *Processor) leaseContainer(ctx context.Context) (types.LeaseContainer, error) {
	if p.container != nil {
		return p.container, nil
	}

	js, err := jetstream.New(p.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	kv, err := kvutil.OpenBucket(ctx, js, jetstream.KeyValueConfig{
		Bucket:      p.cfg.LeaseBucket,
		Description: "leasefeed leases",
		History:     1,
	}, kvutil.DefaultRetryPolicy())
	if err != nil {
		return nil, fmt.Errorf("failed to open lease bucket: %w", err)
	}

	return lease.NewKVContainer(kv), nil
}

// Stop stops acquiring leases, stops every partition and releases the owned leases.
//
// Parameters:
//   - ctx: Context for shutdown timeout (bounded by Config.ShutdownTimeout)
//
// Returns:
//   - error: ErrNotStarted if not running, or the shutdown timeout error
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.transitionState(StateRunning, StateShuttingDown) {
		p.mu.Unlock()
		return ErrNotStarted
	}
	p.cancel()
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.cfg.ShutdownTimeout)
	defer cancel()

	var shutdownErr error

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		shutdownErr = fmt.Errorf("load balancer did not stop: %w", ctx.Err())
	}

	if err := p.controller.Shutdown(ctx); err != nil {
		p.logger.Error("partition controller shutdown failed", "error", err)
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	p.hooks.Close()
	p.stopThroughput(ctx)

	p.transitionState(StateShuttingDown, StateStopped)
	p.logger.Info("processor stopped")

	return shutdownErr
}

func (p *Processor) shutdownController(ctx context.Context) {
	if err := p.controller.Shutdown(context.WithoutCancel(ctx)); err != nil {
		p.logger.Warn("partition controller shutdown failed", "error", err)
	}
}

func (p *Processor) stopThroughput(ctx context.Context) {
	if p.throughput == nil {
		return
	}

	if err := p.throughput.store.Stop(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, throughput.ErrNotStarted) {
		p.logger.Warn("failed to stop throughput control", "error", err)
	}
}

// HostName returns the lease owner identity of this host.
func (p *Processor) HostName() string {
	return p.cfg.HostName
}

// State returns the current host state.
//
// Returns:
//   - State: Current state
func (p *Processor) State() State {
	return State(p.state.Load())
}

// OwnedLeases returns copies of the leases this host is processing.
//
// Returns:
//   - []*Lease: Processed leases (nil before Start)
func (p *Processor) OwnedLeases() []*Lease {
	p.mu.Lock()
	controller := p.controller
	p.mu.Unlock()

	if controller == nil {
		return nil
	}

	return controller.OwnedLeases()
}

// WaitState waits for the processor to reach the expected state within the timeout period.
//
// The returned channel receives exactly one value, nil when the state was
// reached or context.DeadlineExceeded, and is closed afterwards.
//
// Parameters:
//   - expectedState: The state to wait for
//   - timeout: Maximum duration to wait for the state
//
// Returns:
//   - <-chan error: A channel that receives the result
//
// Example:
//
//	if err := <-proc.WaitState(leasefeed.StateRunning, 10*time.Second); err != nil {
//	    return fmt.Errorf("processor did not start: %w", err)
//	}
func (p *Processor) WaitState(expectedState State, timeout time.Duration) <-chan error {
	ch := make(chan error, 1)

	go func() {
		defer close(ch)

		if p.State() == expectedState {
			ch <- nil
			return
		}

		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()

		timeoutTimer := time.NewTimer(timeout)
		defer timeoutTimer.Stop()

		for {
			select {
			case <-ticker.C:
				if p.State() == expectedState {
					ch <- nil
					return
				}
			case <-timeoutTimer.C:
				ch <- context.DeadlineExceeded
				return
			}
		}
	}()

	return ch
}

// transitionState moves from one state to another if the transition is valid
// and the current state is from.
func (p *Processor) transitionState(from, to State) bool {
	if !isValidTransition(from, to) {
		p.logger.Error("invalid state transition attempted", "from", from.String(), "to", to.String())
		return false
	}

	if !p.state.CompareAndSwap(int32(from), int32(to)) { //nolint:gosec // State values are controlled enum
		return false
	}

	p.logger.Info("state transition", "from", from.String(), "to", to.String())
	p.metrics.RecordStateTransition(from, to)

	return true
}

var validTransitions = map[State][]State{
	StateInit:          {StateBootstrapping},
	StateBootstrapping: {StateRunning, StateStopped},
	StateRunning:       {StateShuttingDown},
	StateShuttingDown:  {StateStopped},
	StateStopped:       {},
}

func isValidTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}

	return false
}
