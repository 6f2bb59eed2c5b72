package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) storage.VectorIndex {
	t.Helper()
	idx, err := NewMemoryIndex("textbook")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func entry(id, text string, vector ...float32) *core.IndexEntry {
	return &core.IndexEntry{
		ID:          id,
		Text:        text,
		Vector:      embedding.NormalizeVector(vector),
		Fingerprint: core.IDFromContent(text),
	}
}

func TestIndex_EmptyQuery(t *testing.T) {
	idx := newTestIndex(t)

	results, err := idx.Query(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestIndex_UpsertIsIdempotent(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	e := entry("0", "DC circuits", 1, 0)
	require.NoError(t, idx.Upsert(ctx, e))
	require.NoError(t, idx.Upsert(ctx, entry("0", "DC circuits", 1, 0)))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, e.UpdatedAt.IsZero(), "index stamps UpdatedAt")
}

func TestIndex_UpsertOverwrites(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("0", "old text", 1, 0)))
	require.NoError(t, idx.Upsert(ctx, entry("0", "new text", 0, 1)))

	got, err := idx.Get(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "new text", got.Text)
	assert.Equal(t, []float32{0, 1}, got.Vector)
}

func TestIndex_QueryOrderAndCap(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx,
		entry("0", "east", 1, 0),
		entry("1", "north", 0, 1),
		entry("2", "northeast", 1, 1),
	))

	tests := []struct {
		k       int
		wantIDs []string
	}{
		{1, []string{"0"}},
		{2, []string{"0", "2"}},
		{5, []string{"0", "2", "1"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("k=%d", tt.k), func(t *testing.T) {
			results, err := idx.Query(ctx, []float32{1, 0}, tt.k)
			require.NoError(t, err)

			ids := make([]string, len(results))
			for i, r := range results {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.wantIDs, ids)
			for i := 1; i < len(results); i++ {
				assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
			}
		})
	}
}

func TestIndex_QueryValidation(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	_, err := idx.Query(ctx, []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = idx.Query(ctx, nil, 3)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	require.NoError(t, idx.Upsert(ctx, entry("0", "a", 1, 0)))
	_, err = idx.Query(ctx, []float32{1, 0, 0}, 3)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}

func TestIndex_RejectsDimensionMismatch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("0", "a", 1, 0)))
	err := idx.Upsert(ctx, entry("1", "b", 1, 0, 0))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndex_RejectsInvalidEntries(t *testing.T) {
	idx := newTestIndex(t)

	err := idx.Upsert(context.Background(), &core.IndexEntry{ID: "0", Text: "   ", Vector: []float32{1}})
	assert.ErrorIs(t, err, core.ErrInvalidIndexEntry)
}

func TestIndex_GetNotFound(t *testing.T) {
	idx := newTestIndex(t)

	_, err := idx.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIndex_Delete(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx,
		entry("0", "DC circuits", 1, 0),
		entry("1", "AC circuits", 0, 1),
		entry("2", "Fourier analysis", 1, 1)))

	require.NoError(t, idx.Delete(ctx, "1", "2", "missing"))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = idx.Get(ctx, "1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	results, err := idx.Query(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "0", results[0].ID)

	require.NoError(t, idx.Delete(ctx))
}

func TestIndex_DeleteAllAllowsNewDimension(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("0", "a", 1, 0)))
	require.NoError(t, idx.Delete(ctx, "0"))

	require.NoError(t, idx.Upsert(ctx, entry("0", "a", 1, 0, 0)))
	got, err := idx.Get(ctx, "0")
	require.NoError(t, err)
	assert.Len(t, got.Vector, 3)
}

func TestIndex_DeleteManyTransactions(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var entries []*core.IndexEntry
	var ids []string
	for n := range deleteTxnSize + 5 {
		id := fmt.Sprintf("%d", n)
		entries = append(entries, entry(id, "page "+id, 1, float32(n)))
		ids = append(ids, id)
	}
	require.NoError(t, idx.Upsert(ctx, entries...))

	require.NoError(t, idx.Delete(ctx, ids[1:]...))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIndex_CollectionsAreSeparate(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	physics, err := NewIndex(backend, "physics")
	require.NoError(t, err)
	phys, err := NewIndex(backend, "phys")
	require.NoError(t, err)

	require.NoError(t, physics.Upsert(ctx, entry("0", "a", 1, 0), entry("1", "b", 0, 1)))
	require.NoError(t, phys.Upsert(ctx, entry("0", "c", 1, 0)))

	n, err := physics.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = phys.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, phys.Close())
	assert.False(t, backend.IsClosed(), "shared backend stays open")
}

func TestIndex_ForEach(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for i := range 7 {
		require.NoError(t, idx.Upsert(ctx, entry(fmt.Sprint(i), fmt.Sprint("text ", i), 1, float32(i))))
	}

	var sizes []int
	seen := map[string]bool{}
	err := idx.ForEach(ctx, 3, func(batch []*core.IndexEntry) error {
		sizes = append(sizes, len(batch))
		for _, e := range batch {
			seen[e.ID] = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Len(t, seen, 7)
}

func TestIndex_ForEachAllowsWrites(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, entry("0", "a", 1, 0), entry("1", "b", 0, 1)))

	err := idx.ForEach(ctx, 1, func(batch []*core.IndexEntry) error {
		for _, e := range batch {
			e.Text = e.Text + "!"
		}
		return idx.Upsert(ctx, batch...)
	})
	require.NoError(t, err)

	got, err := idx.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "b!", got.Text)
}

func TestIndex_ForEachStopsOnError(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, entry("0", "a", 1, 0), entry("1", "b", 0, 1)))

	boom := fmt.Errorf("boom")
	calls := 0
	err := idx.ForEach(ctx, 1, func([]*core.IndexEntry) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	assert.ErrorIs(t, idx.ForEach(ctx, 0, nil), storage.ErrInvalidQuery)
}

func TestIndex_ConcurrentUpserts(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.Upsert(ctx, entry(fmt.Sprint(i), "text", 1, float32(i))))
		}()
	}
	wg.Wait()

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, count)
}

func TestIndex_ClosedBackendIsUnavailable(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	idx, err := NewIndex(backend, "textbook")
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	_, err = idx.Count(context.Background())
	assert.ErrorIs(t, err, core.ErrIndexUnavailable)
}

func TestOpenIndex_Persists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := OpenIndex(dir, "textbook")
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, entry("0", "persisted", 1, 0)))
	require.NoError(t, idx.Close())

	idx, err = OpenIndex(dir, "textbook")
	require.NoError(t, err)
	defer idx.Close()

	got, err := idx.Get(ctx, "0")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Text)

	// Dimension is recovered from stored entries.
	err = idx.Upsert(ctx, entry("1", "wrong size", 1, 0, 0))
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)
}
