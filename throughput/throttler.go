package throughput

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// RequestThrottler enforces the budget of one group on one client.
//
// Requests and charge tracking hold the read lock, so concurrent requests
// proceed in parallel and update the available budget atomically. Cycle
// renewal holds the write lock and therefore sees no charge in flight.
type RequestThrottler struct {
	group string

	mu         sync.RWMutex
	available  atomicFloat
	scheduled  float64
	cycleStart float64
}

// NewRequestThrottler creates a throttler whose first cycle has the full scheduled budget.
//
// Parameters:
//   - group: Group name reported in rejections
//   - scheduled: Budget of the first cycle
//
// Returns:
//   - *RequestThrottler: Throttler
func NewRequestThrottler(group string, scheduled float64) *RequestThrottler {
	t := &RequestThrottler{group: group, scheduled: scheduled, cycleStart: scheduled}
	t.available.Store(scheduled)

	return t
}

// ProcessRequest runs call when budget remains and deducts its charge afterwards.
//
// The decision only looks at the budget at admission time, so a single
// expensive call may drive the budget negative.
//
// Parameters:
//   - ctx: Context passed to call
//   - call: The outbound request
//
// Returns:
//   - Response: The response of call
//   - error: *ExceededError when rejected, otherwise the error of call
func (t *RequestThrottler) ProcessRequest(ctx context.Context, call Call) (Response, error) {
	t.mu.RLock()
	available := t.available.Load()
	scheduled := t.scheduled
	t.mu.RUnlock()

	if available <= 0 {
		return nil, &ExceededError{Group: t.group, RetryAfter: backoff(available, scheduled)}
	}

	resp, err := call(ctx)
	t.charge(chargeOf(resp, err))

	return resp, err
}

func (t *RequestThrottler) charge(units float64) {
	if units == 0 {
		return
	}

	t.mu.RLock()
	t.available.Add(-units)
	t.mu.RUnlock()
}

// RenewThroughputUsageCycle closes the current cycle and starts the next one.
//
// Only a deficit carries over: the new budget is min(available, 0) + scheduled.
//
// Parameters:
//   - scheduled: Budget of the next cycle
//
// Returns:
//   - float64: Fraction of the closed cycle's scheduled budget that was consumed
func (t *RequestThrottler) RenewThroughputUsageCycle(scheduled float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	available := t.available.Load()

	var used float64
	if t.scheduled > 0 {
		used = (t.cycleStart - available) / t.scheduled
	}

	next := min(available, 0) + scheduled
	t.scheduled = scheduled
	t.cycleStart = next
	t.available.Store(next)

	return used
}

// Consumed returns the units charged since the current cycle started.
func (t *RequestThrottler) Consumed() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.cycleStart - t.available.Load()
}

// AvailableThroughput returns the remaining budget of the current cycle.
func (t *RequestThrottler) AvailableThroughput() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.available.Load()
}

// ScheduledThroughput returns the budget of the current cycle.
func (t *RequestThrottler) ScheduledThroughput() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.scheduled
}

// backoff is ceil(|available| * 1000 / scheduled) milliseconds.
func backoff(available, scheduled float64) time.Duration {
	if scheduled <= 0 {
		return 0
	}

	ms := math.Ceil(math.Abs(available) * 1000 / scheduled)

	return time.Duration(ms) * time.Millisecond
}

// atomicFloat is a float64 updated with compare-and-swap.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *atomicFloat) Add(delta float64) {
	for {
		old := f.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if f.bits.CompareAndSwap(old, next) {
			return
		}
	}
}
