package throughput

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leasefeed/internal/kvutil"
	"github.com/arloliu/leasefeed/types"
)

// minShareRatio is the fraction of an equal share a client keeps when it
// reported no load, so an idle client can start consuming again.
const minShareRatio = 0.1

// loadReport is the KV document a client publishes every cycle.
type loadReport struct {
	ClientID   string    `json:"client_id"`
	Load       float64   `json:"load"`
	ReportedAt time.Time `json:"reported_at"`
}

// GlobalCoordinator splits the budget of a global group across its clients.
//
// Every client publishes the units it consumed in the last cycle under
// "<container>.<group>.<client id>". The bucket should carry a TTL of a few
// renew intervals so reports of crashed clients expire.
type GlobalCoordinator struct {
	kv       jetstream.KeyValue
	prefix   string
	clientID string
	logger   types.Logger
	now      func() time.Time

	mu       sync.Mutex
	lastLoad float64
}

// NewGlobalCoordinator creates a coordinator with a random client id.
//
// Parameters:
//   - kv: Coordination bucket
//   - container: Target container of the group
//   - group: Group name
//   - logger: Logger
//
// Returns:
//   - *GlobalCoordinator: Coordinator; call Start before Share
func NewGlobalCoordinator(kv jetstream.KeyValue, container, group string, logger types.Logger) *GlobalCoordinator {
	return &GlobalCoordinator{
		kv:       kv,
		prefix:   container + "." + group,
		clientID: uuid.NewString(),
		logger:   logger,
		now:      time.Now,
	}
}

// ClientID returns the id this client publishes under.
func (c *GlobalCoordinator) ClientID() string {
	return c.clientID
}

// Start announces the client with zero load.
//
// Returns:
//   - error: KV write error
func (c *GlobalCoordinator) Start(ctx context.Context) error {
	return c.Report(ctx, 0)
}

// Report publishes the load of the last cycle.
//
// Parameters:
//   - ctx: Context for the KV write
//   - load: Units consumed in the last cycle
//
// Returns:
//   - error: KV write error
func (c *GlobalCoordinator) Report(ctx context.Context, load float64) error {
	data, err := json.Marshal(loadReport{ClientID: c.clientID, Load: load, ReportedAt: c.now().UTC()})
	if err != nil {
		return err
	}

	if _, err := c.kv.Put(ctx, c.key(), data); err != nil {
		return fmt.Errorf("failed to publish load of %s: %w", c.prefix, err)
	}

	c.mu.Lock()
	c.lastLoad = load
	c.mu.Unlock()

	return nil
}

// Share returns this client's part of target.
//
// Every client is first reserved minShareRatio of an equal share; the rest of
// target is split by own load / total load. When no client reported load every
// client gets an equal share. The shares of all clients sum to target.
//
// Parameters:
//   - ctx: Context for the KV reads
//   - target: Budget of the whole group
//
// Returns:
//   - float64: Budget of this client
//   - error: KV read error
func (c *GlobalCoordinator) Share(ctx context.Context, target float64) (float64, error) {
	reports, err := c.reports(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	own := c.lastLoad
	c.mu.Unlock()

	clients := len(reports)
	total := 0.0
	seenSelf := false
	for _, r := range reports {
		total += r.Load
		if r.ClientID == c.clientID {
			seenSelf = true
		}
	}
	if !seenSelf {
		clients++
		total += own
	}

	equal := target / float64(clients)
	if total <= 0 {
		return equal, nil
	}

	floor := equal * minShareRatio

	return floor + (target-floor*float64(clients))*own/total, nil
}

func (c *GlobalCoordinator) reports(ctx context.Context) ([]loadReport, error) {
	keys, err := c.kv.Keys(ctx)
	if err != nil {
		if kvutil.IsNoKeysFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list load reports: %w", err)
	}

	prefix := c.prefix + "."
	out := make([]loadReport, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		entry, err := c.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}

			return nil, fmt.Errorf("failed to read load report %s: %w", key, err)
		}

		var r loadReport
		if err := json.Unmarshal(entry.Value(), &r); err != nil {
			c.logger.Warn("skipping malformed load report", "key", key, "error", err)
			continue
		}
		out = append(out, r)
	}

	return out, nil
}

// Close removes the client's report so the others take over its share.
//
// Returns:
//   - error: KV delete error
func (c *GlobalCoordinator) Close(ctx context.Context) error {
	if err := c.kv.Delete(ctx, c.key()); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove load report of %s: %w", c.prefix, err)
	}

	return nil
}

func (c *GlobalCoordinator) key() string {
	return c.prefix + "." + c.clientID
}
