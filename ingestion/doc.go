// Package ingestion loads a textbook into a vector index.
//
// The Pipeline runs raw pages through the same stages every time:
//   - Detect "Chapter <n>" headers on the raw pages, carrying each forward
//   - Normalize pages concurrently on a worker pool, keeping page order
//   - Chunk, one chunk per non-empty page
//   - Skip chunks whose stored fingerprint shows the vector is current
//   - Embed the rest in document mode and upsert them, batch by batch
//   - Delete stored entries whose IDs the source no longer produces
//
// Stored fingerprints are read in one pass over the index. A failed batch is
// recorded in the Report and does not stop the others, but it does leave
// stale entries in place until a clean run.
// Ingest returns the failures joined with errors.Join.
package ingestion
