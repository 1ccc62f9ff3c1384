package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// Manager performs ownership-checked operations on lease documents.
//
// Every mutation goes through the Updater, so concurrent writers from other
// hosts are detected by the store's concurrency token and surface as
// types.ErrLeaseLost. Manager is safe for concurrent use.
type Manager struct {
	container types.LeaseContainer
	updater   *Updater
	host      string
	prefix    string
	version   types.LeaseVersion
	logger    types.Logger
	metrics   types.LeaseMetrics
	now       func() time.Time
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// HostName identifies this host as lease owner.
	HostName string

	// Prefix namespaces lease documents in the container.
	Prefix string

	// Version selects the lease variant created for new ranges.
	Version types.LeaseVersion

	// RetryCount bounds precondition retries (DefaultRetryCount if 0).
	RetryCount int
}

// NewManager creates a lease manager.
//
// Parameters:
//   - container: Lease document store
//   - cfg: Host identity, key prefix and lease variant
//   - logger: Logger
//   - metrics: Lease operation metrics
//
// Returns:
//   - *Manager: Lease manager
func NewManager(container types.LeaseContainer, cfg ManagerConfig, logger types.Logger, metrics types.LeaseMetrics) *Manager {
	return &Manager{
		container: container,
		updater:   NewUpdater(container, cfg.RetryCount, logger),
		host:      cfg.HostName,
		prefix:    cfg.Prefix,
		version:   cfg.Version,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// HostName returns the identity this manager writes as owner.
func (m *Manager) HostName() string {
	return m.host
}

// Version returns the lease variant created for new ranges.
func (m *Manager) Version() types.LeaseVersion {
	return m.version
}

// CreateLeaseIfNotExist creates an unowned lease for r.
//
// Losing the creation race to another host is not an error: the call returns
// (nil, nil).
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: Range the lease governs
//   - continuation: Initial continuation ("" for the range's start position)
//
// Returns:
//   - *types.Lease: Created lease, or nil when it already existed
//   - error: Store error
func (m *Manager) CreateLeaseIfNotExist(ctx context.Context, r types.FeedRange, continuation string) (*types.Lease, error) {
	token := r.Token(m.version)
	l := &types.Lease{
		ID:                ID(m.prefix, token),
		Version:           m.version,
		LeaseToken:        token,
		FeedRange:         r,
		ContinuationToken: continuation,
		Timestamp:         m.now(),
	}

	data, err := l.Encode()
	if err != nil {
		return nil, err
	}

	concurrencyToken, err := m.container.CreateItem(ctx, l.ID, data)
	if err != nil {
		if errors.Is(err, types.ErrLeaseConflict) {
			m.logger.Debug("lease already exists", "lease_token", token)
			m.record("create", err)

			return nil, nil
		}
		m.record("create", err)

		return nil, fmt.Errorf("failed to create lease %s: %w", token, err)
	}
	m.record("create", nil)

	l.ConcurrencyToken = concurrencyToken
	m.logger.Info("created lease", "lease_token", token, "continuation", continuation)

	return l, nil
}

// Acquire takes ownership of l.
//
// The acquire succeeds only if the server copy is still owned by whoever owned
// l when it was observed, so two hosts racing on the same observation cannot
// both win.
//
// Returns:
//   - *types.Lease: Lease owned by this host
//   - error: types.ErrLeaseLost if another host changed the owner first
func (m *Manager) Acquire(ctx context.Context, l *types.Lease) (*types.Lease, error) {
	observedOwner := l.Owner
	props := l.Properties

	out, err := m.updater.UpdateLease(ctx, l, func(current *types.Lease) (*types.Lease, error) {
		if current.Owner != observedOwner {
			return nil, fmt.Errorf("%w: lease %s owner changed from '%s' to '%s'",
				types.ErrLeaseLost, current.LeaseToken, observedOwner, current.Owner)
		}
		current.Owner = m.host
		if props != nil {
			current.Properties = props
		}

		return current, nil
	})
	m.record("acquire", err)

	return out, err
}

// Release clears ownership of l.
//
// Returns:
//   - error: types.ErrLeaseLost if the lease is gone or owned by someone else;
//     callers treat that as already released
func (m *Manager) Release(ctx context.Context, l *types.Lease) error {
	current, err := m.read(ctx, l.ID)
	if err != nil {
		if errors.Is(err, types.ErrLeaseNotFound) {
			m.record("release", types.ErrLeaseLost)
			return fmt.Errorf("%w: lease %s already deleted", types.ErrLeaseLost, l.LeaseToken)
		}
		m.record("release", err)

		return err
	}

	if !current.OwnedBy(m.host) {
		m.record("release", types.ErrLeaseLost)
		return fmt.Errorf("%w: lease %s owned by '%s'", types.ErrLeaseLost, l.LeaseToken, current.Owner)
	}

	_, err = m.updater.UpdateLease(ctx, current, func(server *types.Lease) (*types.Lease, error) {
		if !server.OwnedBy(m.host) {
			return nil, fmt.Errorf("%w: lease %s owned by '%s'", types.ErrLeaseLost, server.LeaseToken, server.Owner)
		}
		server.Owner = ""

		return server, nil
	})
	m.record("release", err)

	return err
}

// Renew rewrites l to extend ownership.
//
// Returns:
//   - *types.Lease: Renewed lease with a fresh concurrency token
//   - error: types.ErrLeaseLost if the lease is no longer owned by this host,
//     the context error if cancelled before the write
func (m *Manager) Renew(ctx context.Context, l *types.Lease) (*types.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current, err := m.read(ctx, l.ID)
	if err != nil {
		if errors.Is(err, types.ErrLeaseNotFound) {
			err = fmt.Errorf("%w: lease %s deleted", types.ErrLeaseLost, l.LeaseToken)
		}
		m.record("renew", err)

		return nil, err
	}

	if !current.OwnedBy(m.host) {
		m.record("renew", types.ErrLeaseLost)
		return nil, fmt.Errorf("%w: lease %s owned by '%s'", types.ErrLeaseLost, l.LeaseToken, current.Owner)
	}

	out, err := m.updater.UpdateLease(ctx, current, m.requireOwner(func(server *types.Lease) {}))
	m.record("renew", err)

	return out, err
}

// Checkpoint records continuation as the last processed position of l.
//
// Returns:
//   - *types.Lease: Lease carrying the new continuation
//   - error: types.ErrLeaseLost if not owned by this host, the context error
//     if cancelled (no write is issued)
func (m *Manager) Checkpoint(ctx context.Context, l *types.Lease, continuation string) (*types.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := m.updater.UpdateLease(ctx, l, m.requireOwner(func(server *types.Lease) {
		server.ContinuationToken = continuation
	}))
	m.record("checkpoint", err)

	return out, err
}

// UpdateProperties persists l.Properties.
//
// A lease whose local copy is not owned by this host fails without a round trip.
func (m *Manager) UpdateProperties(ctx context.Context, l *types.Lease) (*types.Lease, error) {
	if !l.OwnedBy(m.host) {
		m.record("update_properties", types.ErrLeaseLost)
		return nil, fmt.Errorf("%w: lease %s is owned by '%s'", types.ErrLeaseLost, l.LeaseToken, l.Owner)
	}

	props := l.Properties
	out, err := m.updater.UpdateLease(ctx, l, m.requireOwner(func(server *types.Lease) {
		server.Properties = props
	}))
	m.record("update_properties", err)

	return out, err
}

// Delete removes l. A lease that is already gone counts as deleted.
func (m *Manager) Delete(ctx context.Context, l *types.Lease) error {
	err := m.container.DeleteItem(ctx, l.ID)
	if err != nil && !errors.Is(err, types.ErrLeaseNotFound) {
		m.record("delete", err)
		return fmt.Errorf("failed to delete lease %s: %w", l.LeaseToken, err)
	}
	m.record("delete", nil)

	return nil
}

// ListAllLeases returns every lease under the manager's prefix.
func (m *Manager) ListAllLeases(ctx context.Context) ([]*types.Lease, error) {
	items, err := m.container.QueryItemsByPrefix(ctx, Prefix(m.prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}

	leases := make([]*types.Lease, 0, len(items))
	for _, item := range items {
		l, err := types.DecodeLease(item.Data, item.ConcurrencyToken)
		if err != nil {
			m.logger.Warn("skipping undecodable lease", "id", item.ID, "error", err)
			continue
		}
		leases = append(leases, l)
	}

	return leases, nil
}

// ListOwnedLeases returns the leases currently owned by this host.
func (m *Manager) ListOwnedLeases(ctx context.Context) ([]*types.Lease, error) {
	all, err := m.ListAllLeases(ctx)
	if err != nil {
		return nil, err
	}

	owned := all[:0]
	for _, l := range all {
		if l.OwnedBy(m.host) {
			owned = append(owned, l)
		}
	}

	return owned, nil
}

// Read returns the current server copy of l.
func (m *Manager) Read(ctx context.Context, l *types.Lease) (*types.Lease, error) {
	return m.read(ctx, l.ID)
}

// ReadByToken returns the current server copy of the lease governing leaseToken.
//
// Returns:
//   - *types.Lease: Current lease
//   - error: types.ErrLeaseNotFound if no such lease exists
func (m *Manager) ReadByToken(ctx context.Context, leaseToken string) (*types.Lease, error) {
	return m.read(ctx, ID(m.prefix, leaseToken))
}

func (m *Manager) read(ctx context.Context, id string) (*types.Lease, error) {
	item, err := m.container.ReadItem(ctx, id)
	if err != nil {
		return nil, err
	}

	return types.DecodeLease(item.Data, item.ConcurrencyToken)
}

// requireOwner wraps apply with the check that the server copy is owned by this host.
func (m *Manager) requireOwner(apply func(server *types.Lease)) MutateFunc {
	return func(server *types.Lease) (*types.Lease, error) {
		if server.Owner == "" {
			return nil, fmt.Errorf("%w: lease %s was released", types.ErrLeaseLost, server.LeaseToken)
		}
		if server.Owner != m.host {
			return nil, fmt.Errorf("%w: lease %s taken by '%s'", types.ErrLeaseLost, server.LeaseToken, server.Owner)
		}
		apply(server)

		return server, nil
	}
}

func (m *Manager) record(op string, err error) {
	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, types.ErrLeaseLost):
		result = "lost"
	case errors.Is(err, types.ErrLeaseConflict):
		result = "conflict"
	case types.IsCancellation(err):
		result = "cancelled"
	default:
		result = "error"
	}
	m.metrics.RecordLeaseOperation(op, result)
}
