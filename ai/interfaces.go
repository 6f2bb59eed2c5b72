package ai

import (
	"context"
	"errors"

	"github.com/poiesic/primer/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// Embed returns one vector per input text, in input order. The mode selects
	// the retrieval direction the vectors are biased for; the same text may
	// embed differently in document and query mode.
	// Transient provider failures are returned wrapping core.ErrTransientCollaborator.
	Embed(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error)

	// Model returns the embedding model identifier, used for fingerprints.
	Model() string
}

// Generator produces text from a single prompt.
// Implementations must be thread-safe and keep no state between calls.
type Generator interface {
	// Generate sends prompt to the model and returns its raw text output.
	Generate(ctx context.Context, prompt string) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the answer generation service.
	Generator() Generator

	// Close releases resources held by the provider and its services.
	Close() error
}

// IsTransient reports whether err is a retryable collaborator failure.
func IsTransient(err error) bool {
	return errors.Is(err, core.ErrTransientCollaborator)
}
