package history

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound    = errors.New("journal entry not found")
	ErrInvalidID   = errors.New("invalid journal entry ID")
	ErrStoreClosed = errors.New("journal store is closed")
)

// Store defines the interface for the move journal.
type Store interface {
	// Add records an entry and returns its ID.
	Add(ctx context.Context, entry Entry) (string, error)

	// Get retrieves a single entry by ID.
	Get(ctx context.Context, id string) (Entry, error)

	// List retrieves entries matching the query options, newest first.
	List(ctx context.Context, opts QueryOptions) ([]Entry, error)

	// Count returns the number of entries matching the query options.
	Count(ctx context.Context, opts QueryOptions) (int64, error)

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id string) error

	// Prune removes old entries based on the prune options.
	Prune(ctx context.Context, opts PruneOptions) (PruneResult, error)

	// Stats returns aggregate statistics about the journal.
	Stats(ctx context.Context) (Stats, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
