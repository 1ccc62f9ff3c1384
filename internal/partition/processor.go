package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	// PollDelay is the wait after an empty or throttled fetch.
	PollDelay time.Duration

	// MaxItems bounds the batch size requested from the source.
	MaxItems int

	// StartFromBeginning selects the start position for leases without a continuation.
	StartFromBeginning bool
}

// checkpointer persists processing progress; implemented by *lease.Manager.
type checkpointer interface {
	Checkpoint(ctx context.Context, l *types.Lease, continuation string) (*types.Lease, error)
}

// Processor pulls changes of one lease, hands them to the observer and
// checkpoints after each successfully processed batch.
//
// Batches are fetched and checkpointed strictly in order: the next fetch
// starts only after the previous batch was checkpointed.
type Processor struct {
	lease       *types.Lease
	source      types.ChangeFeedSource
	checkpoints checkpointer
	observer    types.ChangeFeedObserver
	cfg         ProcessorConfig
	logger      types.Logger
	metrics     types.ProcessorMetrics
	now         func() time.Time

	lastProcessed atomic.Int64
	progressed    atomic.Bool

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// NewProcessor creates a processor for l.
//
// Parameters:
//   - l: Owned lease; its continuation is the start position
//   - source: Change feed
//   - checkpoints: Lease manager used to checkpoint
//   - observer: User observer receiving the batches
//   - cfg: Poll delay, batch size and start position
//   - logger: Logger
//   - metrics: Batch metrics
//
// Returns:
//   - *Processor: Processor ready to Run
func NewProcessor(
	l *types.Lease,
	source types.ChangeFeedSource,
	checkpoints checkpointer,
	observer types.ChangeFeedObserver,
	cfg ProcessorConfig,
	logger types.Logger,
	metrics types.ProcessorMetrics,
) *Processor {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 100
	}

	return &Processor{
		lease:       l.Clone(),
		source:      source,
		checkpoints: checkpoints,
		observer:    observer,
		cfg:         cfg,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		done:        make(chan struct{}),
	}
}

// Run processes the lease until ctx is cancelled or a terminal fault occurs.
//
// Returns:
//   - error: *types.FeedRangeGoneError when the range split or was retired,
//     types.ErrLeaseLost when a checkpoint found the lease taken,
//     types.ErrObserverFailed wrapping observer errors, the cancellation
//     error on a clean stop, or a fatal fetch error
func (p *Processor) Run(ctx context.Context) error {
	defer close(p.done)

	err := p.run(ctx)
	if err != nil && (ctx.Err() == nil || !types.IsCancellation(err)) {
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
	}

	return err
}

func (p *Processor) run(ctx context.Context) error {
	oc := observerContext(p.lease)
	continuation := p.lease.ContinuationToken

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := p.source.Fetch(ctx, types.FetchRequest{
			Range:              p.lease.Range(),
			Continuation:       continuation,
			MaxItems:           p.cfg.MaxItems,
			StartFromBeginning: p.cfg.StartFromBeginning,
		})
		if err != nil {
			if retry, ferr := p.classifyFetchError(ctx, err); !retry {
				return ferr
			}
			if err := sleep(ctx, p.cfg.PollDelay); err != nil {
				return err
			}

			continue
		}

		if len(batch.Changes) == 0 {
			if batch.Continuation != "" {
				continuation = batch.Continuation
			}
			p.lastProcessed.Store(p.now().UnixNano())
			if err := sleep(ctx, p.cfg.PollDelay); err != nil {
				return err
			}

			continue
		}

		start := p.now()
		if err := p.observer.ProcessChanges(ctx, oc, batch.Changes); err != nil {
			if types.IsCancellation(err) && ctx.Err() != nil {
				return ctx.Err()
			}

			return fmt.Errorf("%w: lease %s: %w", types.ErrObserverFailed, p.lease.LeaseToken, err)
		}
		p.metrics.RecordBatch(len(batch.Changes), p.now().Sub(start).Seconds())

		updated, err := p.checkpoints.Checkpoint(ctx, p.lease, batch.Continuation)
		if err != nil {
			return err
		}
		p.lease = updated
		continuation = batch.Continuation

		p.lastProcessed.Store(p.now().UnixNano())
		p.progressed.Store(true)
	}
}

// classifyFetchError reports whether err is transient; otherwise it returns the terminal fault.
func (p *Processor) classifyFetchError(ctx context.Context, err error) (bool, error) {
	switch {
	case types.IsCancellation(err) && ctx.Err() != nil:
		return false, ctx.Err()
	case errors.Is(err, types.ErrPartitionSplit), errors.Is(err, types.ErrPartitionGone):
		p.logger.Info("feed range gone", "lease_token", p.lease.LeaseToken, "error", err)

		return false, &types.FeedRangeGoneError{
			LeaseToken:   p.lease.LeaseToken,
			Continuation: p.lease.ContinuationToken,
			Split:        errors.Is(err, types.ErrPartitionSplit),
			Err:          err,
		}
	case errors.Is(err, types.ErrSourceThrottled):
		p.logger.Debug("fetch throttled", "lease_token", p.lease.LeaseToken, "error", err)
		return true, nil
	default:
		return false, fmt.Errorf("failed to fetch changes for lease %s: %w", p.lease.LeaseToken, err)
	}
}

// Done is closed when Run returns.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// Err returns the terminal fault, or nil while running or after a clean stop.
func (p *Processor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

// LastProcessedTime returns when the processor last completed a fetch cycle.
// Empty fetches count: a caught-up partition is making progress.
func (p *Processor) LastProcessedTime() time.Time {
	ns := p.lastProcessed.Load()
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns)
}

// ResetProgress reports whether a batch was processed since the last call and clears the flag.
func (p *Processor) ResetProgress() bool {
	return p.progressed.Swap(false)
}
