package types

// LeaseSnapshot is a lease as observed by the load balancer.
type LeaseSnapshot struct {
	// Lease is the observed copy.
	Lease *Lease

	// Expired is true when the lease is unowned or its owner stopped renewing it.
	Expired bool
}

// LoadBalancingStrategy decides which leases this host should try to take.
//
// Strategies are called on every acquire interval with a snapshot of every
// lease. They should be deterministic for the same input, run quickly and keep
// no state between calls.
type LoadBalancingStrategy interface {
	// SelectLeasesToTake returns the leases host should attempt to acquire.
	//
	// Parameters:
	//   - host: Identity of the calling host
	//   - leases: Snapshot of every lease with its expiry classification
	//
	// Returns:
	//   - []*Lease: Leases to acquire (may be empty)
	SelectLeasesToTake(host string, leases []LeaseSnapshot) []*Lease
}
