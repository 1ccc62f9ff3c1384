package partition

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/feed"
	"github.com/arloliu/leasefeed/internal/lease"
	"github.com/arloliu/leasefeed/internal/logging"
	"github.com/arloliu/leasefeed/internal/metrics"
	"github.com/arloliu/leasefeed/types"
)

func newTestLeases(c types.LeaseContainer, host string) *lease.Manager {
	return lease.NewManager(c, lease.ManagerConfig{
		HostName: host,
		Prefix:   "test",
		Version:  types.LeaseVersionPartitionKeyRange,
	}, logging.NewNop(), metrics.NewNop())
}

func newTestFeed(t *testing.T) *feed.Memory {
	t.Helper()

	topo, err := feed.NewStaticTopology(
		types.FeedRange{ID: "0", Min: "", Max: "7F"},
		types.FeedRange{ID: "1", Min: "7F", Max: "FF"},
	)
	require.NoError(t, err)

	return feed.NewMemory(topo)
}

func appendChanges(t *testing.T, src *feed.Memory, rangeID string, data ...string) {
	t.Helper()

	for _, d := range data {
		_, err := src.Append(rangeID, []byte(d))
		require.NoError(t, err)
	}
}

// createAndAcquire creates the lease of rangeID and acquires it for m's host.
func createAndAcquire(t *testing.T, m *lease.Manager, rangeID, continuation string) *types.Lease {
	t.Helper()

	l, err := m.CreateLeaseIfNotExist(t.Context(), types.FeedRange{ID: rangeID}, continuation)
	require.NoError(t, err)
	require.NotNil(t, l)

	owned, err := m.Acquire(t.Context(), l)
	require.NoError(t, err)

	return owned
}

// recordingObserver collects delivered batches.
type recordingObserver struct {
	mu      sync.Mutex
	batches [][]types.Change
	opened  int
	closed  []types.CloseReason
	failOn  int
	failErr error
}

func (o *recordingObserver) Open(context.Context, types.ObserverContext) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened++

	return nil
}

func (o *recordingObserver) ProcessChanges(_ context.Context, _ types.ObserverContext, changes []types.Change) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.failErr != nil && len(o.batches)+1 == o.failOn {
		return o.failErr
	}
	o.batches = append(o.batches, changes)

	return nil
}

func (o *recordingObserver) Close(_ context.Context, _ types.ObserverContext, reason types.CloseReason) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, reason)

	return nil
}

func (o *recordingObserver) data() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	var out []string
	for _, b := range o.batches {
		for _, c := range b {
			out = append(out, string(c.Data))
		}
	}

	return out
}

func (o *recordingObserver) closeReasons() []types.CloseReason {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]types.CloseReason(nil), o.closed...)
}

// scriptedSource returns queued fetch results, then blocks until ctx is done.
type scriptedSource struct {
	mu      sync.Mutex
	results []fetchResult
	ranges  []types.FeedRange
	calls   int
}

type fetchResult struct {
	batch types.Batch
	err   error
}

func (s *scriptedSource) ListOverlappingRanges(context.Context, types.FeedRange) ([]types.FeedRange, error) {
	return s.ranges, nil
}

func (s *scriptedSource) Fetch(ctx context.Context, _ types.FetchRequest) (types.Batch, error) {
	s.mu.Lock()
	s.calls++
	if len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		s.mu.Unlock()

		return r.batch, r.err
	}
	s.mu.Unlock()

	<-ctx.Done()

	return types.Batch{}, ctx.Err()
}

func (s *scriptedSource) fetchCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}
