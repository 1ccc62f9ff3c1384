package partition

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/arloliu/leasefeed/types"
)

// Synchronizer reconciles the feed's range topology with the lease documents.
type Synchronizer struct {
	source types.ChangeFeedSource
	leases LeaseManager
	logger types.Logger
}

// NewSynchronizer creates a synchronizer.
//
// Parameters:
//   - source: Change feed whose ranges need leases
//   - leases: Lease manager used to create leases
//   - logger: Logger
//
// Returns:
//   - *Synchronizer: Synchronizer
func NewSynchronizer(source types.ChangeFeedSource, leases LeaseManager, logger types.Logger) *Synchronizer {
	return &Synchronizer{source: source, leases: leases, logger: logger}
}

// CreateMissingLeases creates a lease for every live range that has none.
//
// Ranges are processed in the order the source returns them. A range whose
// ancestor still has a lease is skipped: that ancestor's split creates it.
//
// Returns:
//   - error: Enumeration or store error
func (s *Synchronizer) CreateMissingLeases(ctx context.Context) error {
	ranges, err := s.source.ListOverlappingRanges(ctx, types.FullRange)
	if err != nil {
		return fmt.Errorf("failed to list feed ranges: %w", err)
	}

	existing, err := s.leases.ListAllLeases(ctx)
	if err != nil {
		return err
	}

	version := s.leases.Version()
	tokens := make(map[string]struct{}, len(existing))
	rangeIDs := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		tokens[l.LeaseToken] = struct{}{}
		if id := l.Range().ID; id != "" {
			rangeIDs[id] = struct{}{}
		}
	}

	created := 0
	for _, r := range ranges {
		if _, ok := tokens[r.Token(version)]; ok {
			continue
		}

		if slices.ContainsFunc(r.Parents, func(id string) bool {
			_, ok := rangeIDs[id]
			return ok
		}) {
			s.logger.Debug("skipping range covered by parent lease", "range", r.ID, "parents", r.Parents)
			continue
		}

		l, err := s.leases.CreateLeaseIfNotExist(ctx, r, "")
		if err != nil {
			return err
		}
		if l != nil {
			created++
		}
	}

	s.logger.Info("lease synchronization finished", "ranges", len(ranges), "created", created)

	return nil
}

// SplitPartition creates the child leases of a split or retired lease.
//
// Children start with an empty continuation. A child that already exists is
// read back so the caller can still acquire it. The parent is left untouched;
// deleting it is the caller's job once the children are covered. A retired
// range yields no children.
//
// Parameters:
//   - ctx: Context for cancellation
//   - parent: Lease whose range is gone
//
// Returns:
//   - []*types.Lease: Child leases in source order
//   - error: Enumeration or store error
func (s *Synchronizer) SplitPartition(ctx context.Context, parent *types.Lease) ([]*types.Lease, error) {
	parentRange := parent.Range()

	ranges, err := s.source.ListOverlappingRanges(ctx, parentRange)
	if err != nil {
		return nil, fmt.Errorf("failed to list child ranges of %s: %w", parent.LeaseToken, err)
	}

	children := make([]*types.Lease, 0, len(ranges))
	for _, r := range ranges {
		if r.Matches(parentRange) {
			continue
		}

		child, err := s.leases.CreateLeaseIfNotExist(ctx, r, "")
		if err != nil {
			return nil, err
		}

		if child == nil {
			child, err = s.leases.ReadByToken(ctx, r.Token(s.leases.Version()))
			if errors.Is(err, types.ErrLeaseNotFound) {
				// created and already split again by someone else
				s.logger.Warn("child lease vanished during split", "lease_token", parent.LeaseToken, "child", r.ID)
				continue
			}
			if err != nil {
				return nil, err
			}
		}

		children = append(children, child)
	}

	s.logger.Info("partition split", "lease_token", parent.LeaseToken, "children", len(children))

	return children, nil
}
