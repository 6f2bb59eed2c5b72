package storage

import (
	"context"

	"github.com/poiesic/primer/core"
)

// VectorIndex stores chunk embeddings and answers similarity queries.
type VectorIndex interface {
	// Upsert stores entries, overwriting any entry with the same ID.
	// Each entry is written atomically. UpdatedAt is set by the index.
	Upsert(ctx context.Context, entries ...*core.IndexEntry) error

	// Query returns up to k entries most similar to vector, highest score
	// first. An empty index yields an empty slice and no error.
	Query(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error)

	// Count returns the number of entries in the index.
	Count(ctx context.Context) (int, error)

	// Get returns the entry with the given ID.
	// Returns ErrNotFound if the entry doesn't exist.
	Get(ctx context.Context, id string) (*core.IndexEntry, error)

	// Delete removes the entries with the given IDs. IDs that are not
	// stored are ignored.
	Delete(ctx context.Context, ids ...string) error

	// ForEach calls fn with successive batches of at most batchSize entries
	// until every entry has been visited or fn returns an error.
	ForEach(ctx context.Context, batchSize int, fn func(entries []*core.IndexEntry) error) error

	// Collection returns the name of the collection this index serves.
	Collection() string

	// Close releases resources held by the index.
	Close() error
}
