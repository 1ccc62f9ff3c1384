package strategy

import (
	"github.com/arloliu/leasefeed/internal/hash"
	"github.com/arloliu/leasefeed/types"
)

// ConsistentHash places leases on hosts with a consistent hash ring.
//
// The ring is built from the owners of unexpired leases plus the calling host.
// A host takes every expired lease that hashes to it, and steals at most one
// live lease per call that hashes to it but is held by another host, so
// placement converges without mass hand-offs.
type ConsistentHash struct {
	virtualNodes int
	hashSeed     uint64
}

var _ types.LoadBalancingStrategy = (*ConsistentHash)(nil)

// ConsistentHashOption configures a ConsistentHash strategy.
type ConsistentHashOption func(*ConsistentHash)

// NewConsistentHash creates a new consistent hash strategy.
//
// Parameters:
//   - opts: Optional configuration (WithVirtualNodes, WithHashSeed)
//
// Returns:
//   - *ConsistentHash: Initialized consistent hash strategy
//
// Example:
//
//	s := strategy.NewConsistentHash(strategy.WithVirtualNodes(300))
//	p, err := leasefeed.NewProcessor(&cfg, conn, src, factory, leasefeed.WithStrategy(s))
func NewConsistentHash(opts ...ConsistentHashOption) *ConsistentHash {
	ch := &ConsistentHash{
		virtualNodes: 150,
	}

	for _, opt := range opts {
		opt(ch)
	}

	return ch
}

// WithVirtualNodes sets the number of virtual nodes per host.
//
// Higher values provide better distribution but increase memory usage.
// Recommended range: 100-300 (default: 150).
func WithVirtualNodes(nodes int) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		if nodes > 0 {
			ch.virtualNodes = nodes
		}
	}
}

// WithHashSeed sets the hash function seed (0 = unseeded).
//
// Every host must use the same seed, otherwise hosts disagree on placement.
func WithHashSeed(seed uint64) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		ch.hashSeed = seed
	}
}

// SelectLeasesToTake implements types.LoadBalancingStrategy.
func (ch *ConsistentHash) SelectLeasesToTake(host string, leases []types.LeaseSnapshot) []*types.Lease {
	if len(leases) == 0 {
		return nil
	}

	hosts := []string{host}
	for _, snap := range leases {
		if !snap.Expired && snap.Lease.Owner != "" {
			hosts = append(hosts, snap.Lease.Owner)
		}
	}
	ring := hash.NewRing(hosts, ch.virtualNodes, ch.hashSeed)

	var (
		take   []*types.Lease
		stolen bool
	)
	for _, snap := range leases {
		l := snap.Lease
		if ring.GetNode(l.LeaseToken) != host {
			continue
		}

		switch {
		case snap.Expired || l.Owner == "":
			take = append(take, l)
		case l.Owner != host && !stolen:
			take = append(take, l)
			stolen = true
		}
	}

	return take
}
