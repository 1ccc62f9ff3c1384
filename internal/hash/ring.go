package hash

import (
	"encoding/binary"
	"slices"
	"sort"

	"github.com/zeebo/xxh3"
)

// Ring implements a consistent hash ring with virtual nodes.
//
// The ring maps lease tokens to hosts using consistent hashing, which keeps
// most leases on the same host when hosts join or leave.
type Ring struct {
	// nodes contains all virtual nodes on the ring, sorted by hash
	nodes []virtualNode

	// hosts holds the unique list of hosts present on the ring
	hosts []string

	// seed for hash function (0 means unseeded)
	seed uint64
}

type virtualNode struct {
	hash uint64
	host string
}

// NewRing creates a new consistent hash ring.
//
// Parameters:
//   - hosts: Host identities to place on the ring (duplicates are ignored)
//   - virtualNodesPerHost: Number of virtual nodes per host (higher = better distribution)
//   - seed: Seed for the hash function (0 for unseeded)
//
// Returns:
//   - *Ring: Initialized hash ring
//
// Example:
//
//	ring := hash.NewRing([]string{"host-a", "host-b"}, 150, 0)
//	owner := ring.GetNode(lease.LeaseToken)
func NewRing(hosts []string, virtualNodesPerHost int, seed uint64) *Ring {
	ring := &Ring{seed: seed, hosts: []string{}}

	seen := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		ring.hosts = append(ring.hosts, h)
	}

	ring.nodes = make([]virtualNode, 0, len(ring.hosts)*virtualNodesPerHost)
	for _, h := range ring.hosts {
		ring.addHost(h, virtualNodesPerHost)
	}

	slices.SortFunc(ring.nodes, func(a, b virtualNode) int {
		switch {
		case a.hash < b.hash:
			return -1
		case a.hash > b.hash:
			return 1
		default:
			// tie-break on host so the ring is independent of input order
			if a.host < b.host {
				return -1
			}
			if a.host > b.host {
				return 1
			}

			return 0
		}
	})

	return ring
}

// addHost places the virtual nodes of one host on the ring.
func (r *Ring) addHost(host string, vnodes int) {
	buf := make([]byte, 0, len(host)+8)
	for i := range vnodes {
		buf = append(buf[:0], host...)
		buf = binary.BigEndian.AppendUint64(buf, uint64(i)) //nolint:gosec // i is non-negative
		r.nodes = append(r.nodes, virtualNode{hash: r.hashBytes(buf), host: host})
	}
}

func (r *Ring) hashBytes(b []byte) uint64 {
	if r.seed == 0 {
		return xxh3.Hash(b)
	}

	return xxh3.HashSeed(b, r.seed)
}

// GetNode returns the host owning key.
//
// Parameters:
//   - key: Key to place on the ring (typically a lease token)
//
// Returns:
//   - string: Owning host, or "" when the ring is empty
func (r *Ring) GetNode(key string) string {
	if len(r.nodes) == 0 {
		return ""
	}

	h := r.hashBytes([]byte(key))
	idx := sort.Search(len(r.nodes), func(i int) bool {
		return r.nodes[i].hash >= h
	})
	if idx == len(r.nodes) {
		idx = 0
	}

	return r.nodes[idx].host
}

// Hosts returns the hosts on the ring in insertion order.
func (r *Ring) Hosts() []string {
	return slices.Clone(r.hosts)
}

// Size returns the number of virtual nodes on the ring.
func (r *Ring) Size() int {
	return len(r.nodes)
}
