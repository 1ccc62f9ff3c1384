package strategy

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/arloliu/leasefeed/types"
)

// EqualPartitions spreads leases evenly across the hosts that own them.
//
// The target lease count per host is ceil(leases/hosts), where hosts are the
// owners of unexpired leases plus the calling host, clamped to the configured
// minimum and maximum. A host below its target takes expired leases first;
// when none are expired it steals one lease per call from the most loaded host.
type EqualPartitions struct {
	minScale int
	maxScale int
}

var _ types.LoadBalancingStrategy = (*EqualPartitions)(nil)

// EqualPartitionsOption configures an EqualPartitions strategy.
type EqualPartitionsOption func(*EqualPartitions)

// NewEqualPartitions creates the default load balancing strategy.
//
// Parameters:
//   - opts: Optional configuration (WithMinScale, WithMaxScale)
//
// Returns:
//   - *EqualPartitions: Initialized strategy
//   - error: ErrInvalidScale if the maximum is below the minimum
//
// Example:
//
//	s, err := strategy.NewEqualPartitions(strategy.WithMaxScale(8))
//	if err != nil {
//	    return err
//	}
//	p, err := leasefeed.NewProcessor(&cfg, conn, src, factory, leasefeed.WithStrategy(s))
func NewEqualPartitions(opts ...EqualPartitionsOption) (*EqualPartitions, error) {
	s := &EqualPartitions{}
	for _, opt := range opts {
		opt(s)
	}

	if s.minScale < 0 || s.maxScale < 0 {
		return nil, fmt.Errorf("%w: negative scale", ErrInvalidScale)
	}
	if s.maxScale > 0 && s.maxScale < s.minScale {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidScale, s.minScale, s.maxScale)
	}

	return s, nil
}

// WithMinScale sets the minimum number of leases a host aims to hold (0 = no minimum).
func WithMinScale(n int) EqualPartitionsOption {
	return func(s *EqualPartitions) {
		s.minScale = n
	}
}

// WithMaxScale caps the number of leases a host aims to hold (0 = unbounded).
func WithMaxScale(n int) EqualPartitionsOption {
	return func(s *EqualPartitions) {
		s.maxScale = n
	}
}

// SelectLeasesToTake implements types.LoadBalancingStrategy.
func (s *EqualPartitions) SelectLeasesToTake(host string, leases []types.LeaseSnapshot) []*types.Lease {
	if len(leases) == 0 {
		return nil
	}

	counts := map[string]int{host: 0}
	owned := make(map[string][]*types.Lease)
	var expired []*types.Lease

	for _, snap := range leases {
		if snap.Expired || snap.Lease.Owner == "" {
			expired = append(expired, snap.Lease)
			continue
		}
		counts[snap.Lease.Owner]++
		owned[snap.Lease.Owner] = append(owned[snap.Lease.Owner], snap.Lease)
	}

	target := s.target(len(leases), len(counts))
	needed := target - counts[host]
	if needed <= 0 {
		return nil
	}

	if len(expired) > 0 {
		return expired[:min(needed, len(expired))]
	}

	if victim := s.leaseToSteal(host, counts, owned, target, needed); victim != nil {
		return []*types.Lease{victim}
	}

	return nil
}

// target returns the lease count a host should converge to.
func (s *EqualPartitions) target(leaseCount, hostCount int) int {
	t := (leaseCount + hostCount - 1) / hostCount
	if s.minScale > 0 && t < s.minScale {
		t = s.minScale
	}
	if s.maxScale > 0 && t > s.maxScale {
		t = s.maxScale
	}

	return t
}

// leaseToSteal picks one lease from the most loaded other host, or nil when
// taking it would not move both hosts toward the target.
func (s *EqualPartitions) leaseToSteal(host string, counts map[string]int, owned map[string][]*types.Lease, target, needed int) *types.Lease {
	others := make([]string, 0, len(counts))
	for h := range counts {
		if h != host {
			others = append(others, h)
		}
	}
	if len(others) == 0 {
		return nil
	}

	// most loaded first, then by name for a stable choice
	slices.SortFunc(others, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}

		return cmp.Compare(a, b)
	})
	busiest := others[0]

	threshold := target
	if needed > 1 {
		threshold = target - 1
	}
	if counts[busiest] <= threshold {
		return nil
	}

	return owned[busiest][0]
}
