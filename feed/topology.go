package feed

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/arloliu/leasefeed/types"
)

// Errors returned by topology updates.
var (
	ErrUnknownRange   = errors.New("unknown feed range")
	ErrDuplicateRange = errors.New("duplicate feed range id")
	ErrInvalidRange   = errors.New("invalid feed range")
)

// RangeStatus is the topology's view of a requested range.
type RangeStatus int

const (
	// RangeLive means the range exists and accepts appends.
	RangeLive RangeStatus = iota

	// RangeSplit means the range was replaced by children.
	RangeSplit

	// RangeGone means the range was retired without children.
	RangeGone
)

// Topology describes the live ranges of a feed.
type Topology interface {
	// Overlapping returns live ranges overlapping r, in topology order.
	Overlapping(r types.FeedRange) []types.FeedRange

	// Resolve maps r to the range it denotes and reports whether it is still live.
	Resolve(r types.FeedRange) (types.FeedRange, RangeStatus)
}

// StaticTopology is an in-process, updatable Topology.
//
// It keeps every range it has ever seen so split parents can still be resolved
// (and drained) after they stopped being live.
type StaticTopology struct {
	mu      sync.RWMutex
	live    []types.FeedRange
	retired map[string]types.FeedRange
	split   map[string]bool
}

var _ Topology = (*StaticTopology)(nil)

// NewStaticTopology creates a topology with the given live ranges.
//
// Parameters:
//   - ranges: Initial live ranges; every range needs a unique ID
//
// Returns:
//   - *StaticTopology: Topology
//   - error: ErrInvalidRange or ErrDuplicateRange
//
// Example:
//
//	topo, _ := feed.NewStaticTopology(
//	    types.FeedRange{ID: "0", Min: "", Max: "7F"},
//	    types.FeedRange{ID: "1", Min: "7F", Max: "FF"},
//	)
func NewStaticTopology(ranges ...types.FeedRange) (*StaticTopology, error) {
	t := &StaticTopology{
		retired: make(map[string]types.FeedRange),
		split:   make(map[string]bool),
	}

	for _, r := range ranges {
		if err := t.addLocked(r); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *StaticTopology) addLocked(r types.FeedRange) error {
	if r.ID == "" {
		return fmt.Errorf("%w: range without id", ErrInvalidRange)
	}
	if t.indexLocked(r.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateRange, r.ID)
	}
	if _, ok := t.retired[r.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRange, r.ID)
	}
	t.live = append(t.live, cloneRange(r))

	return nil
}

func (t *StaticTopology) indexLocked(id string) int {
	return slices.IndexFunc(t.live, func(r types.FeedRange) bool { return r.ID == id })
}

// Ranges returns a copy of the live ranges.
func (t *StaticTopology) Ranges() []types.FeedRange {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]types.FeedRange, len(t.live))
	for i, r := range t.live {
		out[i] = cloneRange(r)
	}

	return out
}

// Overlapping implements Topology.
func (t *StaticTopology) Overlapping(r types.FeedRange) []types.FeedRange {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []types.FeedRange
	for _, live := range t.live {
		if r.Overlaps(live) {
			out = append(out, cloneRange(live))
		}
	}

	return out
}

// Resolve implements Topology.
func (t *StaticTopology) Resolve(r types.FeedRange) (types.FeedRange, RangeStatus) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, live := range t.live {
		if (r.ID != "" && live.ID == r.ID) || (r.ID == "" && r.Matches(live)) {
			return cloneRange(live), RangeLive
		}
	}

	for id, old := range t.retired {
		if (r.ID != "" && id == r.ID) || (r.ID == "" && r.Matches(old)) {
			if t.split[id] {
				return cloneRange(old), RangeSplit
			}

			return cloneRange(old), RangeGone
		}
	}

	return r, RangeGone
}

// Add appends a new live range.
func (t *StaticTopology) Add(r types.FeedRange) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.addLocked(r)
}

// Split replaces the live range id with children.
//
// Children inherit the parent's lineage; when the parent has key bounds the
// children must lie within them.
//
// Parameters:
//   - id: Live range to split
//   - children: Replacement ranges (at least one)
//
// Returns:
//   - error: ErrUnknownRange, ErrInvalidRange or ErrDuplicateRange
//
// Example:
//
//	err := topo.Split("0",
//	    types.FeedRange{ID: "2", Min: "", Max: "3F"},
//	    types.FeedRange{ID: "3", Min: "3F", Max: "7F"},
//	)
func (t *StaticTopology) Split(id string, children ...types.FeedRange) error {
	if len(children) == 0 {
		return fmt.Errorf("%w: split of %s without children", ErrInvalidRange, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRange, id)
	}
	parent := t.live[idx]

	lineage := append(slices.Clone(parent.Parents), parent.ID)
	prepared := make([]types.FeedRange, 0, len(children))
	for _, c := range children {
		if parent.Max != "" && (c.Min < parent.Min || c.Max > parent.Max || c.Max == "") {
			return fmt.Errorf("%w: child %s [%s,%s) outside parent %s [%s,%s)",
				ErrInvalidRange, c.ID, c.Min, c.Max, parent.ID, parent.Min, parent.Max)
		}
		if _, retired := t.retired[c.ID]; c.ID == "" || retired || t.indexLocked(c.ID) >= 0 {
			return fmt.Errorf("%w: child %q", ErrDuplicateRange, c.ID)
		}
		c.Parents = lineage
		prepared = append(prepared, c)
	}

	t.live = slices.Delete(t.live, idx, idx+1)
	t.retired[parent.ID] = parent
	t.split[parent.ID] = true

	for _, c := range prepared {
		if err := t.addLocked(c); err != nil {
			return err
		}
	}

	return nil
}

// Retire removes the live range id without replacement.
func (t *StaticTopology) Retire(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRange, id)
	}

	t.retired[id] = t.live[idx]
	t.live = slices.Delete(t.live, idx, idx+1)

	return nil
}

func cloneRange(r types.FeedRange) types.FeedRange {
	r.Parents = slices.Clone(r.Parents)
	return r
}
