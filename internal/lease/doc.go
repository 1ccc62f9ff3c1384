// Package lease implements lease persistence and the ownership-checked lease
// operations used by the partition pipeline.
//
// Leases live in a NATS JetStream KV bucket. The KV revision is the concurrency
// token: creates use kv.Create, writes use kv.Update with the expected
// revision, so concurrent writers race and exactly one wins per attempt.
package lease
