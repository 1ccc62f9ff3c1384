package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/leasefeed/types"
)

func TestMemory_FetchFromBeginning(t *testing.T) {
	m := NewMemory(twoRangeTopology(t))

	for _, d := range []string{"a", "b", "c"} {
		_, err := m.Append("0", []byte(d))
		require.NoError(t, err)
	}

	batch, err := m.Fetch(t.Context(), types.FetchRequest{
		Range:              types.FeedRange{ID: "0"},
		MaxItems:           2,
		StartFromBeginning: true,
	})
	require.NoError(t, err)
	require.Len(t, batch.Changes, 2)
	require.Equal(t, "2", batch.Continuation)

	batch, err = m.Fetch(t.Context(), types.FetchRequest{Range: types.FeedRange{ID: "0"}, Continuation: batch.Continuation, MaxItems: 2})
	require.NoError(t, err)
	require.Len(t, batch.Changes, 1)
	require.Equal(t, []byte("c"), batch.Changes[0].Data)
	require.Equal(t, "3", batch.Continuation)

	batch, err = m.Fetch(t.Context(), types.FetchRequest{Range: types.FeedRange{ID: "0"}, Continuation: batch.Continuation, MaxItems: 2})
	require.NoError(t, err)
	require.Empty(t, batch.Changes)
	require.Equal(t, "3", batch.Continuation)
}

func TestMemory_FetchFromNow(t *testing.T) {
	m := NewMemory(twoRangeTopology(t))

	_, err := m.Append("1", []byte("old"))
	require.NoError(t, err)

	batch, err := m.Fetch(t.Context(), types.FetchRequest{Range: types.FeedRange{ID: "1", Min: "7F", Max: "FF"}, MaxItems: 10})
	require.NoError(t, err)
	require.Empty(t, batch.Changes)
	require.Equal(t, "1", batch.Continuation)
}

func TestMemory_SplitDrainsParentFirst(t *testing.T) {
	topo := twoRangeTopology(t)
	m := NewMemory(topo)

	_, err := m.Append("0", []byte("before-split"))
	require.NoError(t, err)

	require.NoError(t, topo.Split("0",
		types.FeedRange{ID: "2", Min: "", Max: "3F"},
		types.FeedRange{ID: "3", Min: "3F", Max: "7F"},
	))

	_, err = m.Append("0", []byte("rejected"))
	require.ErrorIs(t, err, ErrUnknownRange)
	_, err = m.Append("3", []byte("after-split"))
	require.NoError(t, err)

	parent := types.FeedRange{ID: "0", Min: "", Max: "7F"}

	batch, err := m.Fetch(t.Context(), types.FetchRequest{Range: parent, Continuation: "0", MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, batch.Changes, 1)

	_, err = m.Fetch(t.Context(), types.FetchRequest{Range: parent, Continuation: batch.Continuation, MaxItems: 10})
	require.ErrorIs(t, err, types.ErrPartitionSplit)

	// children start from the split point without an explicit continuation
	batch, err = m.Fetch(t.Context(), types.FetchRequest{Range: types.FeedRange{ID: "3"}, MaxItems: 10})
	require.NoError(t, err)
	require.Len(t, batch.Changes, 1)
	require.Equal(t, []byte("after-split"), batch.Changes[0].Data)
}

func TestMemory_Gone(t *testing.T) {
	topo := twoRangeTopology(t)
	m := NewMemory(topo)
	require.NoError(t, topo.Retire("1"))

	_, err := m.Fetch(t.Context(), types.FetchRequest{Range: types.FeedRange{ID: "1"}, MaxItems: 1})
	require.ErrorIs(t, err, types.ErrPartitionGone)
}

func TestMemory_InvalidContinuation(t *testing.T) {
	m := NewMemory(twoRangeTopology(t))

	_, err := m.Fetch(t.Context(), types.FetchRequest{Range: types.FeedRange{ID: "0"}, Continuation: "abc"})
	require.Error(t, err)
}

func TestMemory_Cancelled(t *testing.T) {
	m := NewMemory(twoRangeTopology(t))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := m.Fetch(ctx, types.FetchRequest{Range: types.FeedRange{ID: "0"}})
	require.ErrorIs(t, err, context.Canceled)

	_, err = m.ListOverlappingRanges(ctx, types.FullRange)
	require.ErrorIs(t, err, context.Canceled)
}
