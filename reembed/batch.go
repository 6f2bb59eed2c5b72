package reembed

import (
	"context"
	"fmt"

	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/storage"
)

// BatchProcessor re-embeds batches of index entries.
type BatchProcessor struct {
	index   storage.VectorIndex
	batcher *embedding.Batcher
	force   bool
}

// NewBatchProcessor creates a new batch processor. With force set, entries
// are re-embedded even when their fingerprint is current.
func NewBatchProcessor(index storage.VectorIndex, batcher *embedding.Batcher, force bool) *BatchProcessor {
	return &BatchProcessor{
		index:   index,
		batcher: batcher,
		force:   force,
	}
}

// Process re-embeds the stale entries of a batch and writes them back.
// It returns how many entries were re-embedded.
func (bp *BatchProcessor) Process(ctx context.Context, entries []*core.IndexEntry) (int, error) {
	model := bp.batcher.Model()

	stale := make([]*core.IndexEntry, 0, len(entries))
	fingerprints := make([]core.ID, 0, len(entries))
	for _, entry := range entries {
		fp := core.Fingerprint(model, core.EmbedModeDocument, entry.Text)
		if !bp.force && entry.Fingerprint == fp {
			continue
		}
		stale = append(stale, entry)
		fingerprints = append(fingerprints, fp)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	texts := make([]string, len(stale))
	for i, entry := range stale {
		texts[i] = entry.Text
	}

	// The batcher retries transient failures and returns unit-length vectors.
	vectors, err := bp.batcher.Embed(ctx, texts, core.EmbedModeDocument)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}

	for i, entry := range stale {
		entry.Vector = vectors[i]
		entry.Fingerprint = fingerprints[i]
	}

	if err := bp.index.Upsert(ctx, stale...); err != nil {
		return 0, fmt.Errorf("failed to update entries: %w", err)
	}
	return len(stale), nil
}
