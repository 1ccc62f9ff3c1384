package lease

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/leasefeed/types"
)

type memoryItem struct {
	data     []byte
	revision uint64
}

// MemoryContainer is an in-process types.LeaseContainer.
//
// It mirrors the KV container's semantics (per-store monotonically increasing
// revisions) and is used by single-process deployments and tests.
type MemoryContainer struct {
	items    *xsync.Map[string, memoryItem]
	revision atomic.Uint64
}

var _ types.LeaseContainer = (*MemoryContainer)(nil)

// NewMemoryContainer creates an empty in-memory container.
func NewMemoryContainer() *MemoryContainer {
	return &MemoryContainer{
		items: xsync.NewMap[string, memoryItem](),
	}
}

func (c *MemoryContainer) nextRevision() uint64 {
	return c.revision.Add(1)
}

// CreateItem implements types.LeaseContainer.
func (c *MemoryContainer) CreateItem(ctx context.Context, id string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		rev     uint64
		existed bool
	)
	c.items.Compute(id, func(old memoryItem, loaded bool) (memoryItem, xsync.ComputeOp) {
		if loaded {
			existed = true
			return old, xsync.CancelOp
		}
		rev = c.nextRevision()

		return memoryItem{data: clone(data), revision: rev}, xsync.UpdateOp
	})
	if existed {
		return "", fmt.Errorf("%w: %s", types.ErrLeaseConflict, id)
	}

	return formatRevision(rev), nil
}

// ReadItem implements types.LeaseContainer.
func (c *MemoryContainer) ReadItem(ctx context.Context, id string) (types.LeaseItem, error) {
	if err := ctx.Err(); err != nil {
		return types.LeaseItem{}, err
	}

	item, ok := c.items.Load(id)
	if !ok {
		return types.LeaseItem{}, fmt.Errorf("%w: %s", types.ErrLeaseNotFound, id)
	}

	return types.LeaseItem{ID: id, Data: clone(item.data), ConcurrencyToken: formatRevision(item.revision)}, nil
}

// ReplaceItem implements types.LeaseContainer.
func (c *MemoryContainer) ReplaceItem(ctx context.Context, id string, data []byte, concurrencyToken string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	expected, err := strconv.ParseUint(concurrencyToken, 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid concurrency token %q", types.ErrPreconditionFailed, concurrencyToken)
	}

	var (
		rev    uint64
		outErr error
	)
	c.items.Compute(id, func(old memoryItem, loaded bool) (memoryItem, xsync.ComputeOp) {
		switch {
		case !loaded:
			outErr = fmt.Errorf("%w: %s", types.ErrLeaseNotFound, id)
			return old, xsync.CancelOp
		case old.revision != expected:
			outErr = fmt.Errorf("%w: %s at revision %d", types.ErrPreconditionFailed, id, expected)
			return old, xsync.CancelOp
		}
		rev = c.nextRevision()

		return memoryItem{data: clone(data), revision: rev}, xsync.UpdateOp
	})
	if outErr != nil {
		return "", outErr
	}

	return formatRevision(rev), nil
}

// DeleteItem implements types.LeaseContainer.
func (c *MemoryContainer) DeleteItem(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, ok := c.items.LoadAndDelete(id); !ok {
		return fmt.Errorf("%w: %s", types.ErrLeaseNotFound, id)
	}

	return nil
}

// QueryItemsByPrefix implements types.LeaseContainer. Items are returned in key order.
func (c *MemoryContainer) QueryItemsByPrefix(ctx context.Context, prefix string) ([]types.LeaseItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []types.LeaseItem
	c.items.Range(func(id string, item memoryItem) bool {
		if strings.HasPrefix(id, prefix) {
			items = append(items, types.LeaseItem{ID: id, Data: clone(item.data), ConcurrencyToken: formatRevision(item.revision)})
		}

		return true
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
