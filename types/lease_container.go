package types

import "context"

// LeaseItem is a raw document held by a LeaseContainer.
type LeaseItem struct {
	// ID is the document key.
	ID string

	// Data is the serialized document.
	Data []byte

	// ConcurrencyToken is the store version of this copy.
	ConcurrencyToken string
}

// LeaseContainer is a keyed, optimistically-concurrent document store.
//
// Every successful write produces a new concurrency token. Implementations
// must distinguish "not found" from "conflict" from "precondition failed",
// because the lease manager depends on that distinction.
type LeaseContainer interface {
	// CreateItem stores a new document.
	//
	// Returns:
	//   - string: Concurrency token of the created document
	//   - error: ErrLeaseConflict if the key already exists
	CreateItem(ctx context.Context, id string, data []byte) (string, error)

	// ReadItem reads the current document.
	//
	// Returns:
	//   - LeaseItem: Current document with its concurrency token
	//   - error: ErrLeaseNotFound if the key does not exist
	ReadItem(ctx context.Context, id string) (LeaseItem, error)

	// ReplaceItem overwrites a document if its version still matches concurrencyToken.
	//
	// Returns:
	//   - string: New concurrency token
	//   - error: ErrPreconditionFailed on version mismatch, ErrLeaseNotFound if deleted
	ReplaceItem(ctx context.Context, id string, data []byte, concurrencyToken string) (string, error)

	// DeleteItem removes a document.
	//
	// Returns:
	//   - error: ErrLeaseNotFound if the key does not exist
	DeleteItem(ctx context.Context, id string) error

	// QueryItemsByPrefix returns every document whose key starts with prefix.
	// An empty result is not an error.
	QueryItemsByPrefix(ctx context.Context, prefix string) ([]LeaseItem, error)
}
