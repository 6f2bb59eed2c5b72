package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/storage"
)

// embeddingProcessor embeds chunks in document mode and upserts them.
type embeddingProcessor struct {
	index   storage.VectorIndex
	batcher *embedding.Batcher
	logger  *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(index storage.VectorIndex, batcher *embedding.Batcher, logger *slog.Logger) (*embeddingProcessor, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if batcher == nil {
		return nil, ErrBatcherRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		index:   index,
		batcher: batcher,
		logger:  logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the chunks and writes them to the index in one upsert.
func (ep *embeddingProcessor) process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ep.logger.Debug("embedding chunks", "chunks", len(chunks), "first", chunks[0].ID)

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		texts[i] = chunk.Text
	}

	vectors, err := ep.batcher.Embed(ctx, texts, core.EmbedModeDocument)
	if err != nil {
		ep.logger.Error("error generating embeddings", "chunks", len(chunks), "err", err)
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("%w: expected %d, received %d", embedding.ErrCountMismatch, len(chunks), len(vectors))
	}

	model := ep.batcher.Model()
	entries := make([]*core.IndexEntry, len(chunks))
	for i, chunk := range chunks {
		fp := core.Fingerprint(model, core.EmbedModeDocument, chunk.Text)
		entries[i] = core.EntryFromChunk(chunk, vectors[i], fp)
	}

	if err := ep.index.Upsert(ctx, entries...); err != nil {
		ep.logger.Error("error writing entries", "chunks", len(chunks), "err", err)
		return err
	}
	return nil
}
