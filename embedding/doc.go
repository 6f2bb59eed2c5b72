// Package embedding turns texts into unit-length vectors through an
// ai.Embedder, in fixed-size batches with bounded retry.
//
// Batches are sent one after another and their results are concatenated in
// input order. Each attempt is bounded by a request timeout; transient
// failures (see ai.IsTransient) are retried with doubling delay. When a batch
// cannot be embedded the whole call fails with core.ErrEmbeddingUnavailable
// and no partial output is returned.
//
//	batcher, err := embedding.NewBatcher(provider.Embedder(),
//	    embedding.WithBatchSize(100),
//	    embedding.WithMaxRetries(3),
//	)
//	vectors, err := batcher.Embed(ctx, passages, core.EmbedModeDocument)
package embedding
