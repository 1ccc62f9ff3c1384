package feed

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// Memory is an in-process change feed.
//
// Each range keeps its own log; the continuation is the index of the next
// change in that log.
type Memory struct {
	topology *StaticTopology

	mu   sync.RWMutex
	logs map[string][]types.Change
	now  func() time.Time
}

var _ types.ChangeFeedSource = (*Memory)(nil)

// NewMemory creates an in-memory feed over topology.
func NewMemory(topology *StaticTopology) *Memory {
	return &Memory{
		topology: topology,
		logs:     make(map[string][]types.Change),
		now:      time.Now,
	}
}

// Topology returns the feed's topology.
func (m *Memory) Topology() *StaticTopology {
	return m.topology
}

// Append adds a change to the live range rangeID.
//
// Returns:
//   - string: ID of the appended change
//   - error: ErrUnknownRange if rangeID is not live
func (m *Memory) Append(rangeID string, data []byte) (string, error) {
	if _, status := m.topology.Resolve(types.FeedRange{ID: rangeID}); status != RangeLive {
		return "", fmt.Errorf("%w: %s", ErrUnknownRange, rangeID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.logs[rangeID]
	id := rangeID + ":" + strconv.Itoa(len(log))
	m.logs[rangeID] = append(log, types.Change{ID: id, Data: data, Timestamp: m.now()})

	return id, nil
}

// ListOverlappingRanges implements types.ChangeFeedSource.
func (m *Memory) ListOverlappingRanges(ctx context.Context, r types.FeedRange) ([]types.FeedRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return m.topology.Overlapping(r), nil
}

// Fetch implements types.ChangeFeedSource.
func (m *Memory) Fetch(ctx context.Context, req types.FetchRequest) (types.Batch, error) {
	if err := ctx.Err(); err != nil {
		return types.Batch{}, err
	}

	resolved, status := m.topology.Resolve(req.Range)
	if status == RangeGone {
		return types.Batch{}, fmt.Errorf("%w: %s", types.ErrPartitionGone, resolved.ID)
	}

	m.mu.RLock()
	log := m.logs[resolved.ID]
	m.mu.RUnlock()

	start, err := m.startIndex(req, resolved, len(log))
	if err != nil {
		return types.Batch{}, err
	}

	end := min(start+max(req.MaxItems, 1), len(log))
	if start >= end {
		if status == RangeSplit {
			return types.Batch{}, fmt.Errorf("%w: %s", types.ErrPartitionSplit, resolved.ID)
		}

		return types.Batch{Continuation: strconv.Itoa(start)}, nil
	}

	changes := make([]types.Change, end-start)
	copy(changes, log[start:end])

	return types.Batch{Changes: changes, Continuation: strconv.Itoa(end)}, nil
}

func (m *Memory) startIndex(req types.FetchRequest, r types.FeedRange, logLen int) (int, error) {
	if req.Continuation == "" {
		if req.StartFromBeginning || len(r.Parents) > 0 {
			return 0, nil
		}

		return logLen, nil
	}

	idx, err := strconv.Atoi(req.Continuation)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("invalid continuation %q for range %s", req.Continuation, r.ID)
	}

	return min(idx, logLen), nil
}
