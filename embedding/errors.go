package embedding

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidBatchSize is returned when a batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrCountMismatch is returned when the embedder returns a different
	// number of vectors than texts sent.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrEmptyEmbedding is returned when the embedder returns an empty vector.
	ErrEmptyEmbedding = errors.New("embedder returned an empty vector")
)
