// Package testing provides test utilities for leasefeed.
//
// The helpers run an embedded NATS server with JetStream so lease storage,
// the JetStream feed and the global throughput coordinator can be tested
// without external services.
//
// Key utilities:
//   - StartEmbeddedNATS: single NATS server with JetStream
//   - CreateJetStreamKV: memory-backed KV bucket
//   - CreateStream: memory-backed stream for per-range subjects
//
// Example usage:
//
//	import (
//	    "testing"
//	    feedtest "github.com/arloliu/leasefeed/testing"
//	)
//
//	func TestMyObserver(t *testing.T) {
//	    _, nc := feedtest.StartEmbeddedNATS(t)
//	    kv := feedtest.CreateJetStreamKV(t, nc, "leases")
//	}
package testing
