// Package kvutil provides helpers for NATS JetStream KeyValue buckets.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leasefeed/internal/natsutil"
)

// ErrBucketUnavailable is returned when a bucket could neither be opened nor created.
var ErrBucketUnavailable = errors.New("kv bucket unavailable")

// RetryPolicy bounds the attempts of OpenBucket.
type RetryPolicy struct {
	// Attempts is the number of open-or-create rounds (at least one).
	Attempts int
	// BaseDelay is the wait after the first failed round; it doubles every round.
	BaseDelay time.Duration
}

// DefaultRetryPolicy returns five rounds starting at 10ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 5, BaseDelay: 10 * time.Millisecond}
}

// OpenBucket opens the bucket named by cfg, creating it when it is missing.
//
// The existing bucket wins over cfg: hosts starting with different settings
// share whatever bucket the first one created. A round that loses the
// creation race or hits a connectivity error is retried; any other error
// fails immediately.
//
// Parameters:
//   - ctx: Context for cancellation
//   - js: JetStream context
//   - cfg: Configuration used when the bucket is created
//   - policy: Retry bounds
//
// Returns:
//   - jetstream.KeyValue: The bucket
//   - error: ErrBucketUnavailable wrapping the last cause
//
// Example:
//
//	kv, err := kvutil.OpenBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket:  "leasefeed-leases",
//	    History: 1,
//	}, kvutil.DefaultRetryPolicy())
func OpenBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig, policy RetryPolicy) (jetstream.KeyValue, error) {
	attempts := max(policy.Attempts, 1)
	delay := policy.BaseDelay

	var cause error
	for round := range attempts {
		kv, err := openOrCreate(ctx, js, cfg)
		if err == nil {
			return kv, nil
		}
		cause = err

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrBucketUnavailable, cfg.Bucket, ctx.Err())
		}
		if !errors.Is(err, jetstream.ErrBucketExists) && !natsutil.IsConnectivityError(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrBucketUnavailable, cfg.Bucket, err)
		}
		if round == attempts-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s: %w", ErrBucketUnavailable, cfg.Bucket, ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrBucketUnavailable, cfg.Bucket, attempts, cause)
}

func openOrCreate(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, cfg.Bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}

	return js.CreateKeyValue(ctx, cfg)
}

// IsNoKeysFound reports whether err is the "bucket is empty" result of Keys.
func IsNoKeysFound(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, jetstream.ErrNoKeysFound) || strings.Contains(err.Error(), "no keys found")
}

// IsWrongLastRevision reports whether err is a failed revision precondition.
func IsWrongLastRevision(err error) bool {
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}
