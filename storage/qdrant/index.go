package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/storage"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// DefaultPort is the Qdrant gRPC port.
const DefaultPort = 6334

// Payload keys.
const (
	keyID          = "id"
	keyText        = "text"
	keyChapter     = "chapter"
	keySourceIndex = "source_index"
	keyFingerprint = "fingerprint"
	keyUpdatedAt   = "updated_at"
)

// Config describes how to reach a Qdrant server.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// pointsClient is the subset of *qdrant.Client the index uses.
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	ScrollAndOffset(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)
	Close() error
}

var _ pointsClient = (*qdrant.Client)(nil)

// Index implements storage.VectorIndex on a Qdrant collection using cosine
// distance. The collection is created on first write, sized to the first
// vector seen.
type Index struct {
	client     pointsClient
	collection string
	logger     *slog.Logger

	mu        sync.Mutex
	exists    bool
	dimension int // 0 until this index has created or written the collection
}

var _ storage.VectorIndex = (*Index)(nil)

func newIndex(client pointsClient, collection string) (*Index, error) {
	if client == nil {
		return nil, errors.New("qdrant client is required")
	}
	if collection == "" {
		return nil, errors.New("collection name is required")
	}
	return &Index{
		client:     client,
		collection: collection,
		logger:     slog.Default().With("component", "qdrant-index", "collection", collection),
	}, nil
}

// Open connects to the server described by cfg and returns an index for
// collection. The connection is established lazily on first use.
//
// Returns storage.VectorIndex interface to enforce abstraction.
func Open(cfg Config, collection string) (storage.VectorIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrIndexUnavailable, err)
	}
	idx, err := newIndex(client, collection)
	if err != nil {
		client.Close()
		return nil, err
	}
	idx.logger.Info("qdrant index opened", "host", cfg.Host, "port", cfg.Port)
	return idx, nil
}

// Collection returns the collection name.
func (i *Index) Collection() string {
	return i.collection
}

// PointID maps a chunk ID to the UUID Qdrant stores it under. The mapping is
// stable, so re-ingesting a chunk overwrites its point.
func PointID(collection, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("primer:"+collection+":"+id)).String()
}

// Upsert writes entries and waits for Qdrant to apply them.
func (i *Index) Upsert(ctx context.Context, entries ...*core.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if err := core.ValidateIndexEntry(entry); err != nil {
			return err
		}
	}

	dim := len(entries[0].Vector)
	for _, entry := range entries {
		if len(entry.Vector) != dim {
			return fmt.Errorf("%w: entry %s has %d dimensions, batch has %d",
				storage.ErrDimensionMismatch, entry.ID, len(entry.Vector), dim)
		}
	}
	if err := i.ensureCollection(ctx, dim); err != nil {
		return err
	}

	now := time.Now().UTC()
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, entry := range entries {
		entry.UpdatedAt = now
		payload, err := qdrant.TryValueMap(map[string]any{
			keyID:          entry.ID,
			keyText:        entry.Text,
			keyChapter:     entry.ChapterLabel,
			keySourceIndex: entry.SourceIndex,
			keyFingerprint: strconv.FormatUint(uint64(entry.Fingerprint), 10),
			keyUpdatedAt:   now.Format(time.RFC3339Nano),
		})
		if err != nil {
			return fmt.Errorf("%w: entry %s: %w", storage.ErrSerializationFailed, entry.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(i.collection, entry.ID)),
			Vectors: qdrant.NewVectorsDense(entry.Vector),
			Payload: payload,
		})
	}

	_, err := i.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		i.logger.Error("upsert failed", "count", len(entries), "err", err)
		return wrapErr(ctx, "upsert", err)
	}

	i.logger.Debug("upserted entries", "count", len(entries))
	return nil
}

// ensureCollection creates the collection on first write. A vector whose
// size differs from the one the collection was created with is rejected.
func (i *Index) ensureCollection(ctx context.Context, dim int) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.dimension > 0 {
		if dim != i.dimension {
			return fmt.Errorf("%w: got %d dimensions, collection has %d",
				storage.ErrDimensionMismatch, dim, i.dimension)
		}
		return nil
	}

	if !i.exists {
		exists, err := i.client.CollectionExists(ctx, i.collection)
		if err != nil {
			return wrapErr(ctx, "collection exists", err)
		}
		if !exists {
			err = i.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: i.collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     uint64(dim),
					Distance: qdrant.Distance_Cosine,
				}),
			})
			if err != nil {
				return wrapErr(ctx, "create collection", err)
			}
			i.logger.Info("created collection", "dimensions", dim)
		}
		i.exists = true
	}
	i.dimension = dim
	return nil
}

// collectionReady reports whether the collection exists. Reads against a
// collection that was never written return empty results.
func (i *Index) collectionReady(ctx context.Context) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.exists {
		return true, nil
	}
	exists, err := i.client.CollectionExists(ctx, i.collection)
	if err != nil {
		return false, wrapErr(ctx, "collection exists", err)
	}
	i.exists = exists
	return exists, nil
}

// Query returns the k nearest entries by cosine similarity.
func (i *Index) Query(ctx context.Context, vector []float32, k int) ([]*core.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", storage.ErrInvalidQuery, k)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}

	results := []*core.SearchResult{}
	ready, err := i.collectionReady(ctx)
	if err != nil || !ready {
		return results, err
	}

	i.mu.Lock()
	dim := i.dimension
	i.mu.Unlock()
	if dim > 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection has %d",
			storage.ErrDimensionMismatch, len(vector), dim)
	}

	points, err := i.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: i.collection,
		Query:          qdrant.NewQueryDense(vector),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, wrapErr(ctx, "query", err)
	}

	for _, point := range points {
		entry, err := entryFromPayload(point.GetPayload(), nil)
		if err != nil {
			return nil, err
		}
		results = append(results, storage.ToSearchResult(entry, point.GetScore()))
	}
	return results, nil
}

// Count returns the exact number of points in the collection.
func (i *Index) Count(ctx context.Context) (int, error) {
	ready, err := i.collectionReady(ctx)
	if err != nil || !ready {
		return 0, err
	}
	n, err := i.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: i.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, wrapErr(ctx, "count", err)
	}
	return int(n), nil
}

// Get returns the entry with the given chunk ID.
func (i *Index) Get(ctx context.Context, id string) (*core.IndexEntry, error) {
	ready, err := i.collectionReady(ctx)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, storage.ErrNotFound
	}

	points, err := i.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: i.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(PointID(i.collection, id))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, wrapErr(ctx, "get", err)
	}
	if len(points) == 0 {
		return nil, storage.ErrNotFound
	}
	return entryFromPayload(points[0].GetPayload(), points[0].GetVectors())
}

// Delete removes the points for ids and waits for Qdrant to apply it.
func (i *Index) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	ready, err := i.collectionReady(ctx)
	if err != nil || !ready {
		return err
	}

	points := make([]*qdrant.PointId, len(ids))
	for n, id := range ids {
		points[n] = qdrant.NewID(PointID(i.collection, id))
	}
	_, err = i.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: i.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(points...),
	})
	if err != nil {
		i.logger.Error("delete failed", "count", len(ids), "err", err)
		return wrapErr(ctx, "delete", err)
	}

	i.logger.Debug("deleted entries", "count", len(ids))
	return nil
}

// ForEach scrolls through the collection in point ID order.
func (i *Index) ForEach(ctx context.Context, batchSize int, fn func([]*core.IndexEntry) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", storage.ErrInvalidQuery, batchSize)
	}
	ready, err := i.collectionReady(ctx)
	if err != nil || !ready {
		return err
	}

	var offset *qdrant.PointId
	for {
		points, next, err := i.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: i.collection,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(batchSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return wrapErr(ctx, "scroll", err)
		}
		if len(points) == 0 {
			return nil
		}

		batch := make([]*core.IndexEntry, 0, len(points))
		for _, point := range points {
			entry, err := entryFromPayload(point.GetPayload(), point.GetVectors())
			if err != nil {
				return err
			}
			batch = append(batch, entry)
		}
		if err := fn(batch); err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		offset = next
	}
}

// Close closes the client connection.
func (i *Index) Close() error {
	return i.client.Close()
}

// entryFromPayload rebuilds an entry from a point's payload. vectors may be
// nil when the request did not ask for them.
func entryFromPayload(payload map[string]*qdrant.Value, vectors *qdrant.VectorsOutput) (*core.IndexEntry, error) {
	id := payload[keyID].GetStringValue()
	if id == "" {
		return nil, fmt.Errorf("%w: point payload has no %q", storage.ErrSerializationFailed, keyID)
	}
	entry := &core.IndexEntry{
		ID:           id,
		Text:         payload[keyText].GetStringValue(),
		ChapterLabel: payload[keyChapter].GetStringValue(),
		SourceIndex:  int(payload[keySourceIndex].GetIntegerValue()),
	}

	if raw := payload[keyFingerprint].GetStringValue(); raw != "" {
		fp, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %s fingerprint: %w", storage.ErrSerializationFailed, id, err)
		}
		entry.Fingerprint = core.ID(fp)
	}
	if raw := payload[keyUpdatedAt].GetStringValue(); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			entry.UpdatedAt = ts
		}
	}

	if vectors != nil {
		out := vectors.GetVector()
		if dense := out.GetDense().GetData(); len(dense) > 0 {
			entry.Vector = dense
		} else {
			entry.Vector = out.GetData() //nolint:staticcheck // older servers only fill Data
		}
	}
	return entry, nil
}

// wrapErr classifies a client failure. Every failure is an index
// unavailability; gRPC codes that clear up on their own are also transient.
func wrapErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w: %w", op, ctxErr, err)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return fmt.Errorf("%w: %w: %s: %w", core.ErrIndexUnavailable, core.ErrTransientCollaborator, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %w", core.ErrIndexUnavailable, op, err)
}
