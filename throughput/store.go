package throughput

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leasefeed/internal/logging"
	"github.com/arloliu/leasefeed/internal/metrics"
	"github.com/arloliu/leasefeed/types"
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the throughput metrics.
func WithMetrics(m types.ThroughputMetrics) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRenewInterval sets the cycle length of every group.
func WithRenewInterval(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.renewInterval = d
		}
	}
}

// WithGlobalKV sets the bucket global groups coordinate through.
func WithGlobalKV(kv jetstream.KeyValue) StoreOption {
	return func(s *Store) {
		s.kv = kv
	}
}

// Store holds the throughput control groups of one host process.
//
// Groups are registered per target container. Each container has at most
// one default group, which serves requests that name no registered group.
// Requests of a container without a matching group and without a default
// pass through unmetered.
type Store struct {
	logger        types.Logger
	metrics       types.ThroughputMetrics
	renewInterval time.Duration
	kv            jetstream.KeyValue

	groups   *xsync.Map[string, *GroupController]
	defaults *xsync.Map[string, *GroupController]

	mu      sync.Mutex
	started bool
	runCtx  context.Context //nolint:containedctx // lifetime of the group loops
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewStore creates an empty store.
//
// Parameters:
//   - opts: Store options
//
// Returns:
//   - *Store: Store ready for Register and Start
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logger:        logging.NewNop(),
		metrics:       metrics.NewNop(),
		renewInterval: DefaultRenewInterval,
		groups:        xsync.NewMap[string, *GroupController](),
		defaults:      xsync.NewMap[string, *GroupController](),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Register adds a group for container.
//
// Registration fails fast: a duplicate name or a second default group for
// the same container is rejected before any request is processed. A group
// registered after Start starts immediately.
//
// Parameters:
//   - container: Target container the group meters
//   - g: Group definition
//
// Returns:
//   - error: ErrInvalidGroup, ErrDuplicateGroup, ErrDuplicateDefaultGroup, or a start error
func (s *Store) Register(container string, g Group) error {
	if strings.TrimSpace(container) == "" {
		return fmt.Errorf("%w: container is required", ErrInvalidGroup)
	}
	if err := g.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := groupKey(container, g.Name)
	if _, ok := s.groups.Load(key); ok {
		return fmt.Errorf("%w: %s in %s", ErrDuplicateGroup, g.Name, container)
	}
	if g.IsDefault {
		if current, ok := s.defaults.Load(container); ok {
			return fmt.Errorf("%w: %s in %s (current default %s)", ErrDuplicateDefaultGroup, g.Name, container, current.group.Name)
		}
	}

	c := newGroupController(container, g, s.renewInterval, s.logger, s.metrics)
	if s.started {
		if err := s.startGroup(s.runCtx, c); err != nil {
			return err
		}
	}

	s.groups.Store(key, c)
	if g.IsDefault {
		s.defaults.Store(container, c)
	}
	s.logger.Info("throughput control group registered",
		"container", container, "group", g.Name, "target", g.TargetThroughput, "default", g.IsDefault, "global", g.Global)

	return nil
}

// Start starts the renewal loop of every registered group.
//
// A global group whose coordinator cannot start fails Start unless it sets
// ContinueOnInitError, in which case it runs on its local budget.
//
// Parameters:
//   - ctx: Context for coordinator initialization; the loops run until Stop
//
// Returns:
//   - error: ErrAlreadyStarted or a coordinator initialization error
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var startErr error
	s.groups.Range(func(_ string, c *GroupController) bool {
		startErr = s.startGroup(runCtx, c)
		return startErr == nil
	})
	if startErr != nil {
		cancel()
		s.wg.Wait()
		s.stopGroups(ctx)

		return startErr
	}

	s.runCtx = runCtx
	s.cancel = cancel
	s.started = true

	return nil
}

func (s *Store) startGroup(ctx context.Context, c *GroupController) error {
	if c.group.Global {
		if err := s.startCoordinated(ctx, c); err != nil {
			if !c.group.ContinueOnInitError {
				return fmt.Errorf("failed to start global group %s: %w", c.group.Name, err)
			}
			s.logger.Warn("global throughput coordinator unavailable, using local budget",
				"container", c.container, "group", c.group.Name, "error", err)
		}
	}

	s.wg.Go(func() { c.run(ctx) })

	return nil
}

func (s *Store) startCoordinated(ctx context.Context, c *GroupController) error {
	if s.kv == nil {
		return ErrCoordinatorUnavailable
	}

	return c.start(ctx, NewGlobalCoordinator(s.kv, c.container, c.group.Name, s.logger))
}

// Stop stops every group loop and removes the load reports of global groups.
//
// Returns:
//   - error: ErrNotStarted, or ctx.Err() if the loops did not exit in time
func (s *Store) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.stopGroups(ctx)

	return nil
}

func (s *Store) stopGroups(ctx context.Context) {
	s.groups.Range(func(_ string, c *GroupController) bool {
		c.stop(ctx)
		return true
	})
}

// ProcessRequest runs call under the budget of the request's group.
//
// The group is the one named by req.Group, or the container's default.
// Without either the call passes through.
//
// Parameters:
//   - ctx: Context passed to call
//   - container: Target container of the request
//   - req: Request description; its PriorityLevel is filled from the group when unset
//   - call: The outbound request
//
// Returns:
//   - Response: The response of call
//   - error: ErrNotStarted, *ExceededError, or the error of call
func (s *Store) ProcessRequest(ctx context.Context, container string, req *Request, call Call) (Response, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil, ErrNotStarted
	}

	c := s.resolve(container, req)
	if c == nil {
		return call(ctx)
	}

	if req != nil && req.PriorityLevel == PriorityUnset {
		req.PriorityLevel = c.group.PriorityLevel
	}

	resp, err := c.throttler.ProcessRequest(ctx, call)
	if isExceeded(err) {
		s.metrics.RecordThroughputRequest(c.group.Name, false)
		return nil, err
	}
	s.metrics.RecordThroughputRequest(c.group.Name, true)

	return resp, err
}

func (s *Store) resolve(container string, req *Request) *GroupController {
	if req != nil && req.Group != "" {
		if c, ok := s.groups.Load(groupKey(container, req.Group)); ok {
			return c
		}
	}

	c, _ := s.defaults.Load(container)

	return c
}

// Group returns the controller of a registered group.
func (s *Store) Group(container, name string) (*GroupController, bool) {
	return s.groups.Load(groupKey(container, name))
}

func isExceeded(err error) bool {
	var exceeded *ExceededError
	return errors.As(err, &exceeded)
}

func groupKey(container, name string) string {
	return container + "/" + name
}
