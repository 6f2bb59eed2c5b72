package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/primer/chunker"
	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/normalize"
	"github.com/poiesic/primer/storage"
)

// DefaultBatchSize is the number of chunks embedded and written together.
const DefaultBatchSize = embedding.DefaultBatchSize

// Pipeline orchestrates ingestion of raw pages into a vector index.
type Pipeline struct {
	index         storage.VectorIndex
	batcher       *embedding.Batcher
	chunker       *chunker.Chunker
	normalizePool *ants.Pool
	embeddingPool *ants.Pool
	embeddingProc processor
	batchSize     int
	concurrency   int
	force         bool
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency sets how many batches are embedded at once.
// Default is 1, which processes batches sequentially.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidConcurrency, n)
		}
		p.concurrency = n
		return nil
	}
}

// WithBatchSize sets the number of chunks per ingestion batch.
// Default is DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidBatchSize, size)
		}
		p.batchSize = size
		return nil
	}
}

// WithChunker sets the chunker, typically one configured with a chapter
// catalog. Default is chunker.New().
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c != nil {
			p.chunker = c
		}
		return nil
	}
}

// WithForce re-embeds every chunk, ignoring stored fingerprints.
func WithForce(force bool) Option {
	return func(p *Pipeline) error {
		p.force = force
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(index storage.VectorIndex, batcher *embedding.Batcher, opts ...Option) (*Pipeline, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if batcher == nil {
		return nil, ErrBatcherRequired
	}

	p := &Pipeline{
		index:       index,
		batcher:     batcher,
		chunker:     chunker.New(),
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		logger:      slog.Default().With("component", "ingestion"),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	normalizePool, err := ants.NewPool(max(1, runtime.NumCPU()))
	if err != nil {
		return nil, err
	}
	embeddingPool, err := ants.NewPool(p.concurrency)
	if err != nil {
		normalizePool.Release()
		return nil, err
	}
	p.normalizePool = normalizePool
	p.embeddingPool = embeddingPool

	embeddingProc, err := newEmbeddingProcessor(index, batcher, p.logger)
	if err != nil {
		p.Release()
		return nil, err
	}
	p.embeddingProc = embeddingProc

	return p, nil
}

// Ingest normalizes, chunks, embeds, and indexes rawPages. The report is
// returned even when some batches fail; the error then joins every batch
// failure. Errors that stop the whole run, such as an unreachable index
// while reading stored fingerprints, are returned with a partial report.
//
// rawPages is the whole source: once every batch succeeds, stored entries
// whose IDs the source no longer produces are deleted.
func (p *Pipeline) Ingest(ctx context.Context, rawPages []string) (*Report, error) {
	start := time.Now()
	report := &Report{Pages: len(rawPages)}
	defer func() { report.Elapsed = time.Since(start) }()

	pages, err := p.preparePages(ctx, rawPages)
	if err != nil {
		return report, err
	}

	chunks := p.chunker.ChunkPages(pages)
	report.Chunks = len(chunks)

	stored, err := p.storedEntries(ctx)
	if err != nil {
		return report, err
	}

	pending, err := p.selectPending(ctx, chunks, stored, report)
	if err != nil {
		return report, err
	}

	batches := partition(pending, p.batchSize)
	p.logger.Info("ingesting",
		"pages", report.Pages,
		"chunks", report.Chunks,
		"skipped", report.Skipped,
		"batches", len(batches))

	errs := p.runBatches(ctx, batches)
	var joined []error
	for i, batchErr := range errs {
		if batchErr == nil {
			report.Embedded += len(batches[i])
			continue
		}
		failure := BatchFailure{
			Batch:   i,
			FirstID: batches[i][0].ID,
			LastID:  batches[i][len(batches[i])-1].ID,
			Size:    len(batches[i]),
			Err:     batchErr,
		}
		report.Failed = append(report.Failed, failure)
		joined = append(joined, failure)
		p.logger.Error("batch failed", "batch", i, "chunks", failure.Size, "err", batchErr)
	}

	if len(report.Failed) == 0 {
		if err := p.removeStale(ctx, chunks, stored, report); err != nil {
			joined = append(joined, err)
		}
	}

	count, err := p.index.Count(ctx)
	if err != nil {
		joined = append(joined, fmt.Errorf("count after ingestion: %w", err))
	}
	report.IndexCount = count

	p.logger.Info("ingestion finished",
		"embedded", report.Embedded,
		"removed", report.Removed,
		"failed_batches", len(report.Failed),
		"index_count", report.IndexCount,
		"elapsed", time.Since(start))
	return report, errors.Join(joined...)
}

// preparePages detects chapter headers on the raw pages, carrying the last
// one forward, then normalizes the pages on the worker pool.
func (p *Pipeline) preparePages(ctx context.Context, rawPages []string) ([]chunker.Page, error) {
	pages := make([]chunker.Page, len(rawPages))
	chapter := 0
	for i, raw := range rawPages {
		if n, ok := normalize.DetectChapter(raw); ok {
			chapter = n
		}
		pages[i].Chapter = chapter
	}

	var wg sync.WaitGroup
	for i, raw := range rawPages {
		wg.Add(1)
		err := p.normalizePool.Submit(func() {
			defer wg.Done()
			pages[i].Text = normalize.Normalize(raw)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submit normalize task: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// storedEntries reads the whole index in one pass, keyed by chunk ID.
func (p *Pipeline) storedEntries(ctx context.Context) (map[string]*core.IndexEntry, error) {
	stored := make(map[string]*core.IndexEntry)
	err := p.index.ForEach(ctx, p.batchSize, func(entries []*core.IndexEntry) error {
		for _, entry := range entries {
			stored[entry.ID] = entry
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read stored entries: %w", err)
	}
	return stored, nil
}

// selectPending returns the chunks that need embedding. Chunks whose stored
// fingerprint matches are skipped; if only their chapter or position changed,
// the stored vector is rewritten with the new metadata.
func (p *Pipeline) selectPending(ctx context.Context, chunks []*core.Chunk, stored map[string]*core.IndexEntry, report *Report) ([]*core.Chunk, error) {
	if p.force {
		return chunks, nil
	}

	model := p.batcher.Model()
	pending := make([]*core.Chunk, 0, len(chunks))
	var relabeled []*core.IndexEntry

	for _, chunk := range chunks {
		entry, ok := stored[chunk.ID]
		if !ok || entry.Fingerprint != core.Fingerprint(model, core.EmbedModeDocument, chunk.Text) {
			pending = append(pending, chunk)
			continue
		}
		report.Skipped++
		if entry.ChapterLabel != chunk.ChapterLabel || entry.SourceIndex != chunk.SourceIndex {
			relabeled = append(relabeled, core.EntryFromChunk(chunk, entry.Vector, entry.Fingerprint))
		}
	}

	if len(relabeled) > 0 {
		if err := p.index.Upsert(ctx, relabeled...); err != nil {
			return nil, fmt.Errorf("rewrite chunk metadata: %w", err)
		}
		report.Relabeled = len(relabeled)
	}
	return pending, nil
}

// removeStale deletes stored entries whose IDs are not among chunks. A source
// that produced no chunks removes nothing.
func (p *Pipeline) removeStale(ctx context.Context, chunks []*core.Chunk, stored map[string]*core.IndexEntry, report *Report) error {
	if len(chunks) == 0 {
		if len(stored) > 0 {
			p.logger.Warn("source produced no chunks, keeping stored entries", "stored", len(stored))
		}
		return nil
	}

	current := make(map[string]struct{}, len(chunks))
	for _, chunk := range chunks {
		current[chunk.ID] = struct{}{}
	}
	var stale []string
	for id := range stored {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	slices.Sort(stale)

	if err := p.index.Delete(ctx, stale...); err != nil {
		return fmt.Errorf("remove stale entries: %w", err)
	}
	report.Removed = len(stale)
	p.logger.Info("removed stale entries", "count", len(stale))
	return nil
}

// runBatches processes batches on the embedding pool and returns one error
// slot per batch, in batch order.
func (p *Pipeline) runBatches(ctx context.Context, batches [][]*core.Chunk) []error {
	errs := make([]error, len(batches))
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		err := p.embeddingPool.Submit(func() {
			defer wg.Done()
			errs[i] = p.embeddingProc.process(ctx, batch)
		})
		if err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit batch: %w", err)
		}
	}
	wg.Wait()
	return errs
}

// partition splits chunks into consecutive groups of at most size.
func partition(chunks []*core.Chunk, size int) [][]*core.Chunk {
	var batches [][]*core.Chunk
	for start := 0; start < len(chunks); start += size {
		end := min(start+size, len(chunks))
		batches = append(batches, chunks[start:end])
	}
	return batches
}

// Release releases the worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.normalizePool != nil {
		p.normalizePool.Release()
	}
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}
