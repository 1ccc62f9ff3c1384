// Package strategy provides built-in load balancing strategies.
//
// A strategy decides, on every acquire interval, which leases the calling
// host should try to take. Each strategy sees a snapshot of every lease with
// its expiry classification and returns the leases to acquire; the partition
// controller performs the acquisitions with optimistic ownership checks, so a
// strategy never needs to coordinate with other hosts.
//
// The package includes two built-in strategies:
//
//   - EqualPartitions: Spreads leases evenly across the hosts that currently
//     own leases (default)
//   - ConsistentHash: Places leases on hosts with a consistent hash ring over
//     the known hosts
//
// # Strategy Selection Guide
//
// EqualPartitions:
//   - Use for most workloads
//   - Converges to ceil(leases/hosts) leases per host, one steal per interval
//   - Configuration: minimum and maximum lease count per host
//
// ConsistentHash:
//   - Use when a lease should prefer the same host across restarts
//   - Moves few leases when hosts join or leave
//   - Configuration: virtual nodes, hash seed
//
// Custom strategies can be implemented by satisfying the types.LoadBalancingStrategy interface.
package strategy
