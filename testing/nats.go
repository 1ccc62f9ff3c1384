package testing

import (
	"fmt"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// StartEmbeddedNATS starts an in-process NATS server with JetStream enabled.
//
// The server listens on a random port and stores data under tb.TempDir();
// server and connection are shut down by tb.Cleanup.
//
// Parameters:
//   - tb: Test or benchmark handle used for failure reporting and cleanup
//
// Returns:
//   - *server.Server: The embedded NATS server instance
//   - *nats.Conn: Connected client
//
// Example:
//
//	func TestLeases(t *testing.T) {
//	    _, nc := feedtest.StartEmbeddedNATS(t)
//	    kv := feedtest.CreateJetStreamKV(t, nc, "leases")
//	    // ...
//	}
func StartEmbeddedNATS(tb testing.TB) (*server.Server, *nats.Conn) {
	tb.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  tb.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		tb.Fatalf("failed to create embedded NATS server: %v", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		tb.Fatal("embedded NATS server not ready within timeout")
	}

	nc, err := nats.Connect(ns.ClientURL(),
		nats.Timeout(2*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(3),
	)
	if err != nil {
		ns.Shutdown()
		tb.Fatalf("failed to connect to embedded NATS server: %v", err)
	}

	tb.Cleanup(func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	})

	return ns, nc
}

// NewJetStream returns a JetStream handle for nc, failing the test on error.
func NewJetStream(tb testing.TB, nc *nats.Conn) jetstream.JetStream {
	tb.Helper()

	js, err := jetstream.New(nc)
	if err != nil {
		tb.Fatalf("failed to get JetStream context: %v", err)
	}

	return js
}

// CreateJetStreamKV creates a memory-backed KV bucket for a test.
//
// Parameters:
//   - tb: Test handle
//   - nc: Connection from StartEmbeddedNATS
//   - bucketName: Bucket to create
//
// Returns:
//   - jetstream.KeyValue: The created bucket
func CreateJetStreamKV(tb testing.TB, nc *nats.Conn, bucketName string) jetstream.KeyValue {
	tb.Helper()

	kv, err := NewJetStream(tb, nc).CreateKeyValue(tb.Context(), jetstream.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Test KV bucket: %s", bucketName),
		Storage:     jetstream.MemoryStorage,
		Replicas:    1,
	})
	if err != nil {
		tb.Fatalf("failed to create KV bucket %s: %v", bucketName, err)
	}

	return kv
}

// CreateStream creates a memory-backed stream capturing subjectPrefix.>.
//
// Parameters:
//   - tb: Test handle
//   - nc: Connection from StartEmbeddedNATS
//   - name: Stream name
//   - subjectPrefix: Prefix of the per-range subjects
//
// Returns:
//   - jetstream.Stream: The created stream
func CreateStream(tb testing.TB, nc *nats.Conn, name, subjectPrefix string) jetstream.Stream {
	tb.Helper()

	stream, err := NewJetStream(tb, nc).CreateStream(tb.Context(), jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{subjectPrefix + ".>"},
		Storage:  jetstream.MemoryStorage,
		Replicas: 1,
	})
	if err != nil {
		tb.Fatalf("failed to create stream %s: %v", name, err)
	}

	return stream
}
