package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/primer/ai"
	"github.com/poiesic/primer/core"
)

const (
	DefaultBatchSize      = 100
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// Batcher embeds texts in batches through an ai.Embedder.
// It is safe for concurrent use if the embedder is.
type Batcher struct {
	embedder       ai.Embedder
	batchSize      int
	maxRetries     int
	retryDelay     time.Duration
	requestTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher) error

// WithBatchSize sets how many texts are sent per request.
func WithBatchSize(size int) Option {
	return func(b *Batcher) error {
		if size <= 0 {
			return ErrInvalidBatchSize
		}
		b.batchSize = size
		return nil
	}
}

// WithMaxRetries sets the attempt budget per batch.
func WithMaxRetries(attempts int) Option {
	return func(b *Batcher) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		b.maxRetries = attempts
		return nil
	}
}

// WithRetryDelay sets the delay before the first retry. It doubles on each
// subsequent retry.
func WithRetryDelay(delay time.Duration) Option {
	return func(b *Batcher) error {
		b.retryDelay = delay
		return nil
	}
}

// WithRequestTimeout bounds each attempt. Zero disables the bound.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(b *Batcher) error {
		b.requestTimeout = timeout
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Batcher) error {
		b.logger = logger
		return nil
	}
}

// NewBatcher creates a Batcher over embedder.
func NewBatcher(embedder ai.Embedder, opts ...Option) (*Batcher, error) {
	b := &Batcher{
		embedder:       embedder,
		batchSize:      DefaultBatchSize,
		maxRetries:     DefaultMaxRetries,
		retryDelay:     DefaultRetryDelay,
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default().With("component", "embedding-batcher"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Model returns the underlying embedder's model identifier.
func (b *Batcher) Model() string {
	return b.embedder.Model()
}

// BatchSize returns the configured batch size.
func (b *Batcher) BatchSize() int {
	return b.batchSize
}

// Embed returns one unit vector per text, in input order. Batches are sent
// sequentially. If any batch fails the call fails and nothing is returned.
func (b *Batcher) Embed(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))

		vectors, err := b.EmbedBatch(ctx, texts[start:end], mode)
		if err != nil {
			return nil, fmt.Errorf("batch %d: %w", start/b.batchSize, err)
		}
		result = append(result, vectors...)
	}
	return result, nil
}

// EmbedOne embeds a single text.
func (b *Batcher) EmbedOne(ctx context.Context, text string, mode core.EmbedMode) ([]float32, error) {
	vectors, err := b.EmbedBatch(ctx, []string{text}, mode)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts as a single request, retrying transient failures.
// It does not split texts; callers are expected to respect BatchSize.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var vectors [][]float32
	retryable := func(err error) bool {
		return ctx.Err() == nil && ai.IsTransient(err)
	}
	err := RetryIf(ctx, func() error {
		v, err := b.attempt(ctx, texts, mode)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	}, retryable, b.maxRetries, b.retryDelay)
	if err != nil {
		b.logger.Error("embedding batch failed", "size", len(texts), "mode", mode, "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}
	return vectors, nil
}

func (b *Batcher) attempt(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error) {
	attemptCtx := ctx
	if b.requestTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, b.requestTimeout)
		defer cancel()
	}

	vectors, err := b.embedder.Embed(attemptCtx, texts, mode)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !ai.IsTransient(err) {
			err = fmt.Errorf("%w: %w", core.ErrTransientCollaborator, err)
		}
		return nil, err
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d vectors", ErrCountMismatch, len(texts), len(vectors))
	}

	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: text %d", ErrEmptyEmbedding, i)
		}
		normalized[i] = NormalizeVector(v)
	}
	return normalized, nil
}
