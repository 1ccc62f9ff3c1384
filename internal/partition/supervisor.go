package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/leasefeed/cancellation"
	"github.com/arloliu/leasefeed/types"
)

// Default liveness tuning.
const (
	DefaultVerificationFactor  = 25
	DefaultVerificationEpsilon = time.Second
	maxCheckInterval           = time.Second
)

// SupervisorConfig tunes the liveness check of a Supervisor.
type SupervisorConfig struct {
	// CheckInterval is the cadence of the liveness check (0 = min(renew interval, 1s)).
	CheckInterval time.Duration

	// VerificationFactor multiplies the renew interval to size the verification window.
	VerificationFactor int

	// VerificationEpsilon is added to the verification window.
	VerificationEpsilon time.Duration
}

// processTask is the view of a Processor the supervisor needs.
type processTask interface {
	Run(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
	LastProcessedTime() time.Time
	ResetProgress() bool
}

// renewTask is the view of a Renewer the supervisor needs.
type renewTask interface {
	Run(ctx context.Context) error
	Done() <-chan struct{}
	Err() error
	Interval() time.Duration
}

// Supervisor runs the processor and renewer of one lease and decides when to stop them.
type Supervisor struct {
	lease     *types.Lease
	observer  types.ChangeFeedObserver
	processor processTask
	renewer   renewTask
	logger    types.Logger
	metrics   types.ProcessorMetrics
	now       func() time.Time

	checkInterval time.Duration
	window        time.Duration
	lastCheck     time.Time
}

// NewSupervisor creates a supervisor for l.
//
// The verification window is VerificationFactor × renew interval +
// VerificationEpsilon; a processor that completes no fetch cycle for a whole
// window is torn down even while renewal keeps succeeding.
//
// Parameters:
//   - l: Owned lease
//   - observer: User observer
//   - processor: Processor of l
//   - renewer: Renewer of l
//   - cfg: Liveness tuning
//   - logger: Logger
//   - metrics: Exit metrics
//
// Returns:
//   - *Supervisor: Supervisor ready to Run
func NewSupervisor(
	l *types.Lease,
	observer types.ChangeFeedObserver,
	processor processTask,
	renewer renewTask,
	cfg SupervisorConfig,
	logger types.Logger,
	metrics types.ProcessorMetrics,
) *Supervisor {
	factor := cfg.VerificationFactor
	if factor <= 0 {
		factor = DefaultVerificationFactor
	}
	epsilon := cfg.VerificationEpsilon
	if epsilon <= 0 {
		epsilon = DefaultVerificationEpsilon
	}

	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = min(renewer.Interval(), maxCheckInterval)
	}

	return &Supervisor{
		lease:         l,
		observer:      observer,
		processor:     processor,
		renewer:       renewer,
		logger:        logger,
		metrics:       metrics,
		now:           time.Now,
		checkInterval: interval,
		window:        time.Duration(factor)*renewer.Interval() + epsilon,
	}
}

// Run opens the observer, runs processor and renewer until one of them stops
// or the liveness check fails, then stops both and closes the observer.
//
// Parameters:
//   - token: Cancellation token of the controller; cancelling it stops the lease
//
// Returns:
//   - error: The terminal fault (types.ErrLeaseLost, *types.FeedRangeGoneError,
//     types.ErrObserverFailed, types.ErrPartitionStalled, a fetch error) or
//     types.ErrTaskCancelled on a clean stop
func (s *Supervisor) Run(token cancellation.Token) error {
	oc := observerContext(s.lease)
	closeCtx := context.WithoutCancel(token)

	if err := s.observer.Open(token, oc); err != nil {
		err = fmt.Errorf("%w: open lease %s: %w", types.ErrObserverFailed, s.lease.LeaseToken, err)
		s.closeObserver(closeCtx, oc, types.CloseReasonObserverError)

		return err
	}

	src, err := cancellation.NewLinkedSource(token)
	if err != nil {
		s.closeObserver(closeCtx, oc, types.CloseReasonShutdown)
		return types.ErrTaskCancelled
	}
	defer src.Close()

	var wg sync.WaitGroup
	wg.Go(func() { _ = s.processor.Run(src.Token()) })
	wg.Go(func() { _ = s.renewer.Run(src.Token()) })

	runErr := s.monitor(token)

	src.Cancel()
	wg.Wait()

	reason := CloseReasonOf(runErr)
	s.closeObserver(closeCtx, oc, reason)
	s.metrics.RecordSupervisorExit(reason)

	if reason == types.CloseReasonShutdown {
		s.logger.Debug("supervisor stopped", "lease_token", s.lease.LeaseToken)
	} else {
		s.logger.Info("supervisor stopped", "lease_token", s.lease.LeaseToken, "reason", reason, "error", runErr)
	}

	return runErr
}

// monitor evaluates shouldContinue on the check cadence, and immediately when
// a loop exits or cancellation is requested.
func (s *Supervisor) monitor(token cancellation.Token) error {
	s.lastCheck = s.now()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		if ok, err := s.shouldContinue(token); !ok {
			return err
		}

		select {
		case <-token.Done():
		case <-s.processor.Done():
		case <-s.renewer.Done():
		case <-ticker.C:
		}
	}
}

// shouldContinue reports whether the lease should keep running and, when not, why.
func (s *Supervisor) shouldContinue(token cancellation.Token) (bool, error) {
	if token.IsCancellationRequested() {
		return false, types.ErrTaskCancelled
	}
	if exited, err := taskResult(s.processor.Done(), s.processor.Err); exited {
		return false, err
	}
	if exited, err := taskResult(s.renewer.Done(), s.renewer.Err); exited {
		return false, err
	}

	now := s.now()
	if now.Sub(s.lastCheck) <= s.window {
		return true, nil
	}

	progressed := s.processor.ResetProgress()
	if !progressed && !s.processor.LastProcessedTime().After(s.lastCheck) {
		s.logger.Warn("partition made no progress within verification window",
			"lease_token", s.lease.LeaseToken, "window", s.window)

		return false, fmt.Errorf("%w: lease %s idle for %s", types.ErrPartitionStalled, s.lease.LeaseToken, s.window)
	}
	s.lastCheck = now

	return true, nil
}

// taskResult reports whether a loop has exited and with which fault. A loop
// that exited without a fault saw cancellation first.
func taskResult(done <-chan struct{}, errFn func() error) (bool, error) {
	select {
	case <-done:
	default:
		return false, nil
	}

	if err := errFn(); err != nil {
		return true, err
	}

	return true, types.ErrTaskCancelled
}

func (s *Supervisor) closeObserver(ctx context.Context, oc types.ObserverContext, reason types.CloseReason) {
	if err := s.observer.Close(ctx, oc, reason); err != nil {
		s.logger.Warn("observer close failed", "lease_token", s.lease.LeaseToken, "error", err)
	}
}

// CloseReasonOf maps a supervisor result to the reason reported to the observer and hooks.
func CloseReasonOf(err error) types.CloseReason {
	switch {
	case err == nil:
		return types.CloseReasonShutdown
	case errors.Is(err, types.ErrLeaseLost):
		return types.CloseReasonLeaseLost
	case errors.Is(err, types.ErrFeedRangeGone):
		return types.CloseReasonLeaseGone
	case errors.Is(err, types.ErrObserverFailed):
		return types.CloseReasonObserverError
	case errors.Is(err, types.ErrPartitionStalled):
		return types.CloseReasonStalled
	case types.IsCancellation(err):
		return types.CloseReasonShutdown
	default:
		return types.CloseReasonUnknown
	}
}
