package lease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/arloliu/leasefeed/types"
)

// ErrLockNotHeld is returned when releasing an initialization lock this host does not hold.
var ErrLockNotHeld = errors.New("initialization lock not held")

// Store guards one-time bootstrap with an "initialized" marker and a lock.
//
// The lock is a document carrying its holder and expiry. A free or expired
// lock is taken by a revision-checked write, so two hosts can never hold it at
// the same time even when the previous holder crashed.
type Store struct {
	container types.LeaseContainer
	prefix    string
	host      string
	now       func() time.Time

	mu        sync.Mutex
	lockToken string
}

type lockDocument struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type infoDocument struct {
	InitializedBy string    `json:"initializedBy"`
	InitializedAt time.Time `json:"initializedAt"`
}

// NewStore creates a bootstrap store.
//
// Parameters:
//   - container: Lease document store
//   - prefix: Key prefix shared with the lease manager
//   - host: Identity written as lock holder
//
// Returns:
//   - *Store: Bootstrap store
func NewStore(container types.LeaseContainer, prefix, host string) *Store {
	return &Store{container: container, prefix: prefix, host: host, now: time.Now}
}

// IsInitialized reports whether bootstrap already completed.
func (s *Store) IsInitialized(ctx context.Context) (bool, error) {
	_, err := s.container.ReadItem(ctx, infoKey(s.prefix))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, types.ErrLeaseNotFound) {
		return false, nil
	}

	return false, fmt.Errorf("failed to read initialization marker: %w", err)
}

// MarkInitialized records that bootstrap completed. Marking twice is not an error.
func (s *Store) MarkInitialized(ctx context.Context) error {
	data, err := json.Marshal(infoDocument{InitializedBy: s.host, InitializedAt: s.now().UTC()})
	if err != nil {
		return err
	}

	if _, err := s.container.CreateItem(ctx, infoKey(s.prefix), data); err != nil && !errors.Is(err, types.ErrLeaseConflict) {
		return fmt.Errorf("failed to write initialization marker: %w", err)
	}

	return nil
}

// AcquireInitializationLock tries to become the single bootstrapping host.
//
// Parameters:
//   - ctx: Context for cancellation
//   - ttl: Lock lifetime; an expired lock can be taken over
//
// Returns:
//   - bool: true if this host now holds the lock
//   - error: Store error
func (s *Store) AcquireInitializationLock(ctx context.Context, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(lockDocument{Owner: s.host, ExpiresAt: s.now().Add(ttl).UTC()})
	if err != nil {
		return false, err
	}

	key := lockKey(s.prefix)
	token, err := s.container.CreateItem(ctx, key, data)
	if err == nil {
		s.setLockToken(token)
		return true, nil
	}
	if !errors.Is(err, types.ErrLeaseConflict) {
		return false, fmt.Errorf("failed to create initialization lock: %w", err)
	}

	item, err := s.container.ReadItem(ctx, key)
	if err != nil {
		if errors.Is(err, types.ErrLeaseNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read initialization lock: %w", err)
	}

	var current lockDocument
	if err := json.Unmarshal(item.Data, &current); err != nil {
		return false, fmt.Errorf("failed to decode initialization lock: %w", err)
	}

	if current.Owner != "" && s.now().Before(current.ExpiresAt) {
		return false, nil
	}

	token, err = s.container.ReplaceItem(ctx, key, data, item.ConcurrencyToken)
	if err != nil {
		if errors.Is(err, types.ErrPreconditionFailed) || errors.Is(err, types.ErrLeaseNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("failed to take over initialization lock: %w", err)
	}
	s.setLockToken(token)

	return true, nil
}

// ReleaseInitializationLock frees the lock held by this host.
//
// Returns:
//   - error: ErrLockNotHeld if the lock was not held or was taken over after expiry
func (s *Store) ReleaseInitializationLock(ctx context.Context) error {
	s.mu.Lock()
	token := s.lockToken
	s.lockToken = ""
	s.mu.Unlock()

	if token == "" {
		return ErrLockNotHeld
	}

	data, err := json.Marshal(lockDocument{})
	if err != nil {
		return err
	}

	if _, err := s.container.ReplaceItem(ctx, lockKey(s.prefix), data, token); err != nil {
		if errors.Is(err, types.ErrPreconditionFailed) || errors.Is(err, types.ErrLeaseNotFound) {
			return ErrLockNotHeld
		}

		return fmt.Errorf("failed to release initialization lock: %w", err)
	}

	return nil
}

func (s *Store) setLockToken(token string) {
	s.mu.Lock()
	s.lockToken = token
	s.mu.Unlock()
}
