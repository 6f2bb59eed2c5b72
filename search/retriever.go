package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/storage"
)

// Retriever finds the chunks nearest to a question.
type Retriever struct {
	batcher *embedding.Batcher
	index   storage.VectorIndex
	logger  *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(batcher *embedding.Batcher, index storage.VectorIndex, opts ...Option) (*Retriever, error) {
	if batcher == nil {
		return nil, ErrBatcherRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	r := &Retriever{
		batcher: batcher,
		index:   index,
		logger:  slog.Default().With("component", "retriever"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve returns up to k chunks ranked by similarity to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	return r.RetrieveWithMonitor(ctx, query, k, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, k int, monitor RetrievalMonitor) ([]*core.SearchResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	started := time.Now()
	monitor.Start(query, k)

	vector, err := r.batcher.EmbedOne(ctx, query, core.EmbedModeQuery)
	if err != nil {
		r.logger.Error("error embedding query", "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vector), time.Since(started))

	results, err := r.index.Query(ctx, vector, k)
	if err != nil {
		r.logger.Error("error querying index", "k", k, "err", err)
		return nil, err
	}
	if results == nil {
		results = []*core.SearchResult{}
	}

	for _, result := range results {
		monitor.Hit(query, result)
	}
	monitor.Finish(results, time.Since(started))

	r.logger.Debug("retrieved passages", "k", k, "hits", len(results))
	return results, nil
}
