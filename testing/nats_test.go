package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(time.Second))
	require.True(t, ns.JetStreamEnabled())
}

func TestStartEmbeddedNATS_Parallel(t *testing.T) {
	for range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestCreateJetStreamKV(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	kv := CreateJetStreamKV(t, nc, "test-leases")

	rev, err := kv.Create(t.Context(), "k", []byte("v"))
	require.NoError(t, err)

	entry, err := kv.Get(t.Context(), "k")
	require.NoError(t, err)
	require.Equal(t, rev, entry.Revision())
	require.Equal(t, []byte("v"), entry.Value())
}

func TestCreateStream(t *testing.T) {
	_, nc := StartEmbeddedNATS(t)
	stream := CreateStream(t, nc, "CHANGES", "changes")

	js := NewJetStream(t, nc)
	_, err := js.Publish(t.Context(), "changes.0", []byte("a"))
	require.NoError(t, err)

	msg, err := stream.GetMsg(t.Context(), 1, jetstream.WithGetMsgSubject("changes.0"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), msg.Data)
}
