package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leasefeed/internal/natsutil"
	"github.com/arloliu/leasefeed/types"
)

// JetStream is a change feed stored in a JetStream stream.
//
// Every range maps to the subject "<prefix>.<range id>" of one stream. The
// continuation is the stream sequence to read from next; messages of a range
// are read with direct subject lookups, so no consumer state is kept on the
// server.
type JetStream struct {
	js            jetstream.JetStream
	stream        jetstream.Stream
	subjectPrefix string
	topology      Topology
}

var _ types.ChangeFeedSource = (*JetStream)(nil)

// NewJetStream creates a JetStream-backed feed.
//
// Parameters:
//   - js: JetStream context used for publishing
//   - stream: Stream capturing "<subjectPrefix>.>"
//   - subjectPrefix: Subject prefix of the per-range subjects
//   - topology: Live ranges and their lineage
//
// Returns:
//   - *JetStream: Change feed
//
// Example:
//
//	stream, _ := js.CreateStream(ctx, jetstream.StreamConfig{Name: "ORDERS", Subjects: []string{"orders.>"}})
//	topo, _ := feed.NewStaticTopology(types.FeedRange{ID: "0", Min: "", Max: "FF"})
//	source := feed.NewJetStream(js, stream, "orders", topo)
func NewJetStream(js jetstream.JetStream, stream jetstream.Stream, subjectPrefix string, topology Topology) *JetStream {
	return &JetStream{js: js, stream: stream, subjectPrefix: subjectPrefix, topology: topology}
}

// Subject returns the subject carrying the changes of rangeID.
func (f *JetStream) Subject(rangeID string) string {
	return f.subjectPrefix + "." + rangeID
}

// Publish appends data to the live range rangeID.
//
// Returns:
//   - uint64: Stream sequence of the change
//   - error: ErrUnknownRange if the range is not live, or the publish error
func (f *JetStream) Publish(ctx context.Context, rangeID string, data []byte) (uint64, error) {
	if _, status := f.topology.Resolve(types.FeedRange{ID: rangeID}); status != RangeLive {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRange, rangeID)
	}

	ack, err := f.js.Publish(ctx, f.Subject(rangeID), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to range %s: %w", rangeID, err)
	}

	return ack.Sequence, nil
}

// ListOverlappingRanges implements types.ChangeFeedSource.
func (f *JetStream) ListOverlappingRanges(ctx context.Context, r types.FeedRange) ([]types.FeedRange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return f.topology.Overlapping(r), nil
}

// Fetch implements types.ChangeFeedSource.
func (f *JetStream) Fetch(ctx context.Context, req types.FetchRequest) (types.Batch, error) {
	resolved, status := f.topology.Resolve(req.Range)
	if status == RangeGone {
		return types.Batch{}, fmt.Errorf("%w: %s", types.ErrPartitionGone, resolved.ID)
	}

	seq, err := f.startSequence(ctx, req, resolved)
	if err != nil {
		return types.Batch{}, err
	}

	subject := f.Subject(resolved.ID)
	limit := max(req.MaxItems, 1)
	changes := make([]types.Change, 0, limit)

	for len(changes) < limit {
		msg, err := f.stream.GetMsg(ctx, seq, jetstream.WithGetMsgSubject(subject))
		if err != nil {
			if errors.Is(err, jetstream.ErrMsgNotFound) {
				break
			}

			return types.Batch{}, f.translate(resolved.ID, err)
		}

		changes = append(changes, types.Change{
			ID:        strconv.FormatUint(msg.Sequence, 10),
			Data:      msg.Data,
			Timestamp: msg.Time,
		})
		seq = msg.Sequence + 1
	}

	if len(changes) == 0 && status == RangeSplit {
		return types.Batch{}, fmt.Errorf("%w: %s", types.ErrPartitionSplit, resolved.ID)
	}

	return types.Batch{Changes: changes, Continuation: strconv.FormatUint(seq, 10)}, nil
}

func (f *JetStream) startSequence(ctx context.Context, req types.FetchRequest, r types.FeedRange) (uint64, error) {
	if req.Continuation != "" {
		seq, err := strconv.ParseUint(req.Continuation, 10, 64)
		if err != nil || seq == 0 {
			return 0, fmt.Errorf("invalid continuation %q for range %s", req.Continuation, r.ID)
		}

		return seq, nil
	}

	if req.StartFromBeginning || len(r.Parents) > 0 {
		return 1, nil
	}

	info, err := f.stream.Info(ctx)
	if err != nil {
		return 0, f.translate(r.ID, err)
	}

	return info.State.LastSeq + 1, nil
}

func (f *JetStream) translate(rangeID string, err error) error {
	if natsutil.IsConnectivityError(err) {
		return fmt.Errorf("%w: range %s: %w", types.ErrSourceThrottled, rangeID, err)
	}

	return fmt.Errorf("failed to read range %s: %w", rangeID, err)
}
