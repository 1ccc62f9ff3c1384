// Package types provides core type definitions and interfaces for the leasefeed library.
//
// This package contains shared types that are used across multiple packages in the
// library. By keeping these types in a separate package, we avoid import cycles
// between the root leasefeed package and its internal implementations.
//
// Key types:
//   - Lease: Persisted ownership record for one partition of the change feed
//   - FeedRange: Partition (range) of the change feed a lease governs
//   - ChangeFeedSource: Ordered, resumable stream of change batches per range
//   - LeaseContainer: Optimistically-concurrent document store holding leases
//   - ChangeFeedObserver: User callback receiving change batches
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
