package lease

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leasefeed/internal/kvutil"
	"github.com/arloliu/leasefeed/types"
)

// KVContainer implements types.LeaseContainer on a JetStream KV bucket.
//
// Concurrency tokens are KV revisions rendered in base 10.
type KVContainer struct {
	kv jetstream.KeyValue
}

var _ types.LeaseContainer = (*KVContainer)(nil)

// NewKVContainer creates a container backed by kv.
//
// Parameters:
//   - kv: Bucket holding lease documents (History 1 is sufficient)
//
// Returns:
//   - *KVContainer: Lease container
func NewKVContainer(kv jetstream.KeyValue) *KVContainer {
	return &KVContainer{kv: kv}
}

// CreateItem stores a new document; ErrLeaseConflict if the key exists.
func (c *KVContainer) CreateItem(ctx context.Context, id string, data []byte) (string, error) {
	rev, err := c.kv.Create(ctx, id, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return "", fmt.Errorf("%w: %s", types.ErrLeaseConflict, id)
		}

		return "", fmt.Errorf("failed to create %s: %w", id, err)
	}

	return formatRevision(rev), nil
}

// ReadItem returns the current document; ErrLeaseNotFound if absent or deleted.
func (c *KVContainer) ReadItem(ctx context.Context, id string) (types.LeaseItem, error) {
	entry, err := c.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return types.LeaseItem{}, fmt.Errorf("%w: %s", types.ErrLeaseNotFound, id)
		}

		return types.LeaseItem{}, fmt.Errorf("failed to read %s: %w", id, err)
	}

	return types.LeaseItem{
		ID:               id,
		Data:             entry.Value(),
		ConcurrencyToken: formatRevision(entry.Revision()),
	}, nil
}

// ReplaceItem overwrites a document guarded by its revision.
//
// A revision mismatch is reported as ErrPreconditionFailed, unless the key was
// deleted in the meantime, in which case ErrLeaseNotFound is returned.
func (c *KVContainer) ReplaceItem(ctx context.Context, id string, data []byte, concurrencyToken string) (string, error) {
	rev, err := strconv.ParseUint(concurrencyToken, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid concurrency token %q", types.ErrPreconditionFailed, concurrencyToken)
	}

	newRev, err := c.kv.Update(ctx, id, data, rev)
	if err == nil {
		return formatRevision(newRev), nil
	}

	if !kvutil.IsWrongLastRevision(err) {
		return "", fmt.Errorf("failed to replace %s: %w", id, err)
	}

	if _, getErr := c.kv.Get(ctx, id); errors.Is(getErr, jetstream.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", types.ErrLeaseNotFound, id)
	}

	return "", fmt.Errorf("%w: %s at revision %d", types.ErrPreconditionFailed, id, rev)
}

// DeleteItem removes a document; ErrLeaseNotFound if absent.
func (c *KVContainer) DeleteItem(ctx context.Context, id string) error {
	if _, err := c.kv.Get(ctx, id); err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", types.ErrLeaseNotFound, id)
		}

		return fmt.Errorf("failed to read %s before delete: %w", id, err)
	}

	if err := c.kv.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	return nil
}

// QueryItemsByPrefix returns every live document whose key starts with prefix.
func (c *KVContainer) QueryItemsByPrefix(ctx context.Context, prefix string) ([]types.LeaseItem, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if kvutil.IsNoKeysFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	items := make([]types.LeaseItem, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		item, err := c.ReadItem(ctx, key)
		if err != nil {
			if errors.Is(err, types.ErrLeaseNotFound) {
				continue
			}

			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func formatRevision(rev uint64) string {
	return strconv.FormatUint(rev, 10)
}
