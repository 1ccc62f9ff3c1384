package leasefeed

import (
	"context"
	"errors"
	"fmt"

	"github.com/arloliu/leasefeed/throughput"
	"github.com/arloliu/leasefeed/types"
)

// throttledSource meters Fetch through a throughput control group.
type throttledSource struct {
	types.ChangeFeedSource
	opts *throughputOptions
}

// batchResponse charges one unit per change, and one for an empty poll.
type batchResponse struct {
	batch types.Batch
}

func (r batchResponse) RequestCharge() float64 {
	return float64(max(len(r.batch.Changes), 1))
}

func newThrottledSource(source types.ChangeFeedSource, opts *throughputOptions) *throttledSource {
	return &throttledSource{ChangeFeedSource: source, opts: opts}
}

// Fetch reports a rejected request as types.ErrSourceThrottled so the
// processor retries after its poll delay.
func (s *throttledSource) Fetch(ctx context.Context, req types.FetchRequest) (types.Batch, error) {
	resp, err := s.opts.store.ProcessRequest(ctx, s.opts.container, &throughput.Request{Group: s.opts.group},
		func(ctx context.Context) (throughput.Response, error) {
			batch, err := s.ChangeFeedSource.Fetch(ctx, req)
			if err != nil {
				return nil, err
			}

			return batchResponse{batch: batch}, nil
		})
	if err != nil {
		if errors.Is(err, throughput.ErrThroughputExceeded) {
			return types.Batch{}, fmt.Errorf("%w: %w", types.ErrSourceThrottled, err)
		}

		return types.Batch{}, err
	}

	br, ok := resp.(batchResponse)
	if !ok {
		return types.Batch{}, nil
	}

	return br.batch, nil
}
