package types

import (
	"context"
	"slices"
	"time"
)

// MaxEffectiveKey is the exclusive upper bound of the feed's key space.
const MaxEffectiveKey = "FF"

// FullRange covers the whole key space of a change feed.
var FullRange = FeedRange{Min: "", Max: MaxEffectiveKey}

// FeedRange identifies one partition of the change feed.
//
// A range is addressed either by ID (partition-key-range leases) or by its
// [Min, Max) effective key bounds (EPK-range leases). Parents lists the IDs of
// every ancestor range the partition was split from, oldest first.
type FeedRange struct {
	// ID is the source-assigned partition identifier.
	ID string `json:"id,omitempty"`

	// Min is the inclusive lower key bound.
	Min string `json:"min"`

	// Max is the exclusive upper key bound.
	Max string `json:"max"`

	// Parents lists ancestor range IDs this range was split from.
	Parents []string `json:"parents,omitempty"`
}

// IDOnly reports whether the range is addressed by ID alone (no key bounds).
func (r FeedRange) IDOnly() bool {
	return r.ID != "" && r.Min == "" && r.Max == ""
}

// Token returns the lease token for this range under the given lease version.
//
// Partition-key-range leases use the range ID; EPK-range leases use "min-max".
func (r FeedRange) Token(version LeaseVersion) string {
	if version == LeaseVersionEPKRange {
		return r.Min + "-" + r.Max
	}

	return r.ID
}

// Matches reports whether o denotes the same partition as r.
func (r FeedRange) Matches(o FeedRange) bool {
	if r.IDOnly() || o.IDOnly() {
		return r.ID != "" && r.ID == o.ID
	}

	return r.Min == o.Min && r.Max == o.Max
}

// Overlaps reports whether o covers any part of r.
//
// For ID-only ranges the overlap is resolved by lineage: o overlaps r when it is
// r itself or a descendant of r.
func (r FeedRange) Overlaps(o FeedRange) bool {
	if r.IDOnly() {
		return o.ID == r.ID || slices.Contains(o.Parents, r.ID)
	}

	maxR := r.Max
	if maxR == "" {
		maxR = MaxEffectiveKey
	}
	maxO := o.Max
	if maxO == "" {
		maxO = MaxEffectiveKey
	}

	return r.Min < maxO && o.Min < maxR
}

// Change is a single entry delivered by the change feed.
type Change struct {
	// ID identifies the change within its range (e.g. a stream sequence).
	ID string

	// Data is the opaque user payload.
	Data []byte

	// Timestamp is the time the change was appended to the source.
	Timestamp time.Time
}

// Batch is one page of changes fetched from a single range.
type Batch struct {
	// Changes holds the fetched entries in feed order (may be empty).
	Changes []Change

	// Continuation is the position to resume from after this batch.
	Continuation string
}

// FetchRequest describes one pull from a range of the change feed.
type FetchRequest struct {
	// Range is the partition to read.
	Range FeedRange

	// Continuation is the position to resume from ("" = start position).
	Continuation string

	// MaxItems bounds the number of changes returned.
	MaxItems int

	// StartFromBeginning selects the start position when Continuation is empty.
	StartFromBeginning bool
}

// ChangeFeedSource is the ordered, resumable stream of changes per range.
//
// Implementations report topology changes through Fetch errors:
//   - ErrPartitionSplit when the range was split into children
//   - ErrPartitionGone when the range was retired without children
//   - ErrSourceThrottled for transient overload (the caller retries)
type ChangeFeedSource interface {
	// ListOverlappingRanges returns the live ranges overlapping r, in source order.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - r: Range to resolve (FullRange enumerates the whole feed)
	//
	// Returns:
	//   - []FeedRange: Live ranges overlapping r
	//   - error: Enumeration error
	ListOverlappingRanges(ctx context.Context, r FeedRange) ([]FeedRange, error)

	// Fetch returns the next batch of changes for a range.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - req: Range, continuation and page size
	//
	// Returns:
	//   - Batch: Changes and the continuation after them
	//   - error: ErrPartitionSplit, ErrPartitionGone, ErrSourceThrottled or a fatal error
	Fetch(ctx context.Context, req FetchRequest) (Batch, error)
}
