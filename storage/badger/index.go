package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/storage"
)

// Index implements storage.VectorIndex on a BadgerDB backend. Queries are a
// brute-force dot product over every stored vector, which equals cosine
// similarity because vectors are stored unit length.
type Index struct {
	backend     *Backend
	collection  string
	prefix      []byte
	ownsBackend bool
	logger      *slog.Logger

	mu        sync.Mutex
	dimension int // 0 until known
}

var _ storage.VectorIndex = (*Index)(nil)

// newIndex is an internal constructor that returns the concrete type.
func newIndex(backend *Backend, collection string) (*Index, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	if collection == "" {
		return nil, errors.New("collection name is required")
	}
	return &Index{
		backend:    backend,
		collection: collection,
		prefix:     makeCollectionPrefix(collection),
		logger:     slog.Default().With("component", "badger-index", "collection", collection),
	}, nil
}

// NewIndex creates an index for collection on an open backend. Closing the
// index does not close the backend.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func NewIndex(backend *Backend, collection string) (storage.VectorIndex, error) {
	return newIndex(backend, collection)
}

// OpenIndex opens the database at path and returns an index for collection
// that closes the database when it is closed.
func OpenIndex(path, collection string) (storage.VectorIndex, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	idx, err := newIndex(backend, collection)
	if err != nil {
		backend.Close()
		return nil, err
	}
	idx.ownsBackend = true
	return idx, nil
}

// checkOpen fails fast once the backend is closed; badger panics on
// iterators over a closed database.
func (i *Index) checkOpen() error {
	if i.backend.IsClosed() {
		return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, storage.ErrStorageClosed)
	}
	return nil
}

// Collection returns the collection name.
func (i *Index) Collection() string {
	return i.collection
}

// Upsert writes entries in a single transaction, overwriting existing IDs.
func (i *Index) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.checkOpen(); err != nil {
		return err
	}

	for _, entry := range entries {
		if err := core.ValidateIndexEntry(entry); err != nil {
			return err
		}
	}

	dim, err := i.resolveDimension(len(entries[0].Vector))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if len(entry.Vector) != dim {
			return fmt.Errorf("%w: entry %s has %d dimensions, index has %d",
				storage.ErrDimensionMismatch, entry.ID, len(entry.Vector), dim)
		}
	}

	now := time.Now().UTC()
	err = i.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			entry.UpdatedAt = now
			if err := tx.Set(makeEntryKey(i.collection, entry.ID), storage.MarshalEntry(entry)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		i.logger.Error("upsert failed", "count", len(entries), "err", err)
		return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}

	i.logger.Debug("upserted entries", "count", len(entries))
	return nil
}

// deleteTxnSize caps how many keys one delete transaction touches.
const deleteTxnSize = 1000

// Delete removes the given IDs, a bounded number per transaction.
func (i *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := i.checkOpen(); err != nil {
		return err
	}

	for start := 0; start < len(ids); start += deleteTxnSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		group := ids[start:min(start+deleteTxnSize, len(ids))]
		err := i.backend.WithTx(func(tx *badger.Txn) error {
			for _, id := range group {
				if err := tx.Delete(makeEntryKey(i.collection, id)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			i.logger.Error("delete failed", "count", len(group), "err", err)
			return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
		}
	}

	// An emptied collection may be refilled at another dimension.
	i.mu.Lock()
	i.dimension = 0
	i.mu.Unlock()

	i.logger.Debug("deleted entries", "count", len(ids))
	return nil
}

// resolveDimension returns the index's vector dimension, loading it from the
// first stored entry or adopting want when the index is empty.
func (i *Index) resolveDimension(want int) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dimension > 0 {
		return i.dimension, nil
	}

	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = i.prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		iter.Rewind()
		if !iter.Valid() {
			return nil
		}
		return iter.Item().Value(func(val []byte) error {
			entry, err := storage.UnmarshalEntry(val)
			if err != nil {
				return err
			}
			i.dimension = len(entry.Vector)
			return nil
		})
	}, false)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}

	if i.dimension == 0 {
		i.dimension = want
	}
	return i.dimension, nil
}

// Query returns the k entries with the highest dot product against vector.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	results := []*core.SearchResult{}
	err := i.scan(ctx, func(entry *core.IndexEntry) error {
		if len(entry.Vector) != len(vector) {
			return fmt.Errorf("%w: query has %d dimensions, entry %s has %d",
				storage.ErrDimensionMismatch, len(vector), entry.ID, len(entry.Vector))
		}
		results = append(results, storage.ToSearchResult(entry, embedding.Dot(vector, entry.Vector)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stable sort keeps key order among equal scores.
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// scan calls fn for every entry in the collection.
func (i *Index) scan(ctx context.Context, fn func(*core.IndexEntry) error) error {
	if err := i.checkOpen(); err != nil {
		return err
	}
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = i.prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry *core.IndexEntry
			err := iter.Item().Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
		return nil
	}, false)
	return i.wrapReadErr(err)
}

// Count returns the number of entries in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	if err := i.checkOpen(); err != nil {
		return 0, err
	}
	count := 0
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = i.prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, i.wrapReadErr(err)
	}
	return count, nil
}

// Get returns the entry with the given ID.
func (i *Index) Get(ctx context.Context, id string) (*core.IndexEntry, error) {
	if err := i.checkOpen(); err != nil {
		return nil, err
	}
	var entry *core.IndexEntry
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeEntryKey(i.collection, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			entry, err = storage.UnmarshalEntry(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, i.wrapReadErr(err)
	}
	return entry, nil
}

// ForEach visits the collection in key order, batchSize entries at a time.
// Each batch is read in its own transaction, so fn may write to the index.
func (i *Index) ForEach(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", storage.ErrInvalidQuery, batchSize)
	}

	var after []byte
	for {
		batch, last, err := i.readBatch(ctx, after, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = last
	}
}

// readBatch reads up to limit entries whose keys sort after the key after.
func (i *Index) readBatch(ctx context.Context, after []byte, limit int) ([]*core.IndexEntry, []byte, error) {
	if err := i.checkOpen(); err != nil {
		return nil, nil, err
	}
	var batch []*core.IndexEntry
	var last []byte
	err := i.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = i.prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		if after == nil {
			iter.Rewind()
		} else {
			iter.Seek(after)
			if iter.Valid() && bytes.Equal(iter.Item().Key(), after) {
				iter.Next()
			}
		}

		for ; iter.Valid() && len(batch) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			var entry *core.IndexEntry
			err := item.Value(func(val []byte) error {
				var err error
				entry, err = storage.UnmarshalEntry(val)
				return err
			})
			if err != nil {
				return err
			}
			batch = append(batch, entry)
			last = item.KeyCopy(nil)
		}
		return nil
	}, false)
	if err != nil {
		return nil, nil, i.wrapReadErr(err)
	}
	return batch, last, nil
}

// wrapReadErr marks database failures as index unavailability while leaving
// domain and context errors untouched.
func (i *Index) wrapReadErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, storage.ErrDimensionMismatch),
		errors.Is(err, storage.ErrSerializationFailed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
}

// Close releases the index. The backend is closed only if the index opened it.
func (i *Index) Close() error {
	if i.ownsBackend {
		return i.backend.Close()
	}
	return nil
}
