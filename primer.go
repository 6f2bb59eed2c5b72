// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package primer answers questions about a textbook from its own text.
//
// A Library ingests the pages of a book into a vector index, retrieves the
// passages most similar to a question, and asks a generative model for a
// structured answer grounded in those passages.
package primer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/primer/ai"
	"github.com/poiesic/primer/ai/openai"
	"github.com/poiesic/primer/answer"
	"github.com/poiesic/primer/chunker"
	"github.com/poiesic/primer/config"
	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/ingestion"
	"github.com/poiesic/primer/reembed"
	"github.com/poiesic/primer/search"
	"github.com/poiesic/primer/storage"
	"github.com/poiesic/primer/storage/badger"
	"github.com/poiesic/primer/storage/qdrant"
)

// Library is the query API over one ingested textbook.
type Library struct {
	config    *config.Config
	index     storage.VectorIndex
	provider  ai.AIProvider
	catalog   *chunker.Catalog
	batcher   *embedding.Batcher
	pipeline  *ingestion.Pipeline
	retriever *search.Retriever
	composer  *answer.Composer
	logger    *slog.Logger
}

// Option configures a Library.
type Option func(*options) error

type options struct {
	config  *config.Config
	catalog *chunker.Catalog
	logger  *slog.Logger
}

// WithConfig sets the library configuration.
// Default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return ErrConfigRequired
		}
		o.config = cfg
		return nil
	}
}

// WithCatalog sets the chapter catalog used to label chunks and to list
// chapter names for the generator. It takes precedence over the config's
// catalog path.
func WithCatalog(catalog *chunker.Catalog) Option {
	return func(o *options) error {
		o.catalog = catalog
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

func applyOptions(opts []Option) (*options, error) {
	o := &options{
		config: config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Open creates a Library from configuration: it connects the AI services,
// opens the configured index backend, and loads the chapter catalog if one
// is configured.
func Open(opts ...Option) (*Library, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	cfg := o.config

	if o.catalog == nil && cfg.CatalogPath != "" {
		catalog, err := chunker.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load chapter catalog: %w", err)
		}
		o.catalog = catalog
	}

	provider, err := openai.NewProvider(cfg.AIConfig())
	if err != nil {
		return nil, err
	}

	index, err := openIndex(cfg)
	if err != nil {
		provider.Close()
		return nil, err
	}

	lib, err := newLibrary(index, provider, o)
	if err != nil {
		index.Close()
		provider.Close()
		return nil, err
	}
	return lib, nil
}

func openIndex(cfg *config.Config) (storage.VectorIndex, error) {
	switch cfg.Backend {
	case config.BackendQdrant:
		return qdrant.Open(cfg.QdrantIndexConfig(), cfg.Collection)
	default:
		return badger.OpenIndex(cfg.DBPath, cfg.Collection)
	}
}

// New creates a Library over an existing index and AI provider. The Library
// takes ownership of both and closes them in Close.
func New(index storage.VectorIndex, provider ai.AIProvider, opts ...Option) (*Library, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return newLibrary(index, provider, o)
}

func newLibrary(index storage.VectorIndex, provider ai.AIProvider, o *options) (*Library, error) {
	cfg := o.config
	logger := o.logger.With("component", "primer", "collection", index.Collection())

	batcher, err := embedding.NewBatcher(provider.Embedder(),
		embedding.WithBatchSize(cfg.BatchSize),
		embedding.WithMaxRetries(cfg.Embedding.MaxRetries),
		embedding.WithRetryDelay(cfg.Embedding.RetryDelay),
		embedding.WithRequestTimeout(cfg.Embedding.RequestTimeout))
	if err != nil {
		return nil, err
	}

	lib := &Library{
		config:   cfg,
		index:    index,
		provider: provider,
		catalog:  o.catalog,
		batcher:  batcher,
		logger:   logger,
	}

	lib.pipeline, err = lib.NewPipeline()
	if err != nil {
		return nil, err
	}

	lib.retriever, err = search.NewRetriever(batcher, index)
	if err != nil {
		lib.pipeline.Release()
		return nil, err
	}

	composerOpts := []answer.Option{answer.WithGenerateTimeout(cfg.Generator.Timeout)}
	if o.catalog != nil {
		composerOpts = append(composerOpts, answer.WithCatalog(o.catalog))
	}
	lib.composer, err = answer.NewComposer(provider.Generator(), composerOpts...)
	if err != nil {
		lib.pipeline.Release()
		return nil, err
	}

	return lib, nil
}

// Config returns the library configuration.
func (l *Library) Config() *config.Config {
	return l.config
}

// Index returns the underlying vector index.
func (l *Library) Index() storage.VectorIndex {
	return l.index
}

// NewPipeline creates an ingestion pipeline over the library's index with the
// configured batch size, concurrency, and chapter catalog. opts are applied
// last. The caller must Release the pipeline.
func (l *Library) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	chunkerOpts := []chunker.Option{}
	if l.catalog != nil {
		chunkerOpts = append(chunkerOpts, chunker.WithLookup(l.catalog))
	}
	base := []ingestion.Option{
		ingestion.WithBatchSize(l.config.BatchSize),
		ingestion.WithConcurrency(l.config.Concurrency),
		ingestion.WithChunker(chunker.New(chunkerOpts...)),
	}
	return ingestion.NewPipeline(l.index, l.batcher, append(base, opts...)...)
}

// Ingest adds the pages of a textbook to the index. Pages are in source
// order; empty pages are dropped.
func (l *Library) Ingest(ctx context.Context, pages []string) (*ingestion.Report, error) {
	return l.pipeline.Ingest(ctx, pages)
}

// Retrieve returns up to k passages ranked by similarity to question.
// k <= 0 uses the configured default.
func (l *Library) Retrieve(ctx context.Context, question string, k int) ([]*core.SearchResult, error) {
	return l.RetrieveWithMonitor(ctx, question, k, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each retrieval stage.
func (l *Library) RetrieveWithMonitor(ctx context.Context, question string, k int, monitor search.RetrievalMonitor) ([]*core.SearchResult, error) {
	if k <= 0 {
		k = l.config.TopK
	}
	return l.retriever.RetrieveWithMonitor(ctx, question, k, monitor)
}

// Ask answers question from the k passages most similar to it. When the
// index has nothing to offer, the fixed no-grounding answer is returned
// without calling the generator.
func (l *Library) Ask(ctx context.Context, question string, k int) (*core.StructuredAnswer, error) {
	results, err := l.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	passages := make([]string, len(results))
	for i, result := range results {
		passages[i] = result.Text
	}

	reply, err := l.composer.Answer(ctx, question, passages)
	if err != nil {
		return nil, err
	}
	l.logger.Info("answered question",
		"passages", len(passages),
		"grounded", reply.Grounded,
		"source_chapter", reply.SourceChapter)
	return reply, nil
}

// Reembed recomputes the vector of every stored passage with the current
// embedding model. Entries whose vector is already current are skipped
// unless force is set.
func (l *Library) Reembed(ctx context.Context, force bool, progress io.Writer) (*reembed.Summary, error) {
	r, err := reembed.NewReembedder(l.index, l.batcher, &reembed.Config{
		BatchSize: l.config.BatchSize,
		Force:     force,
	}, progress)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx)
}

// Count returns the number of passages in the index.
func (l *Library) Count(ctx context.Context) (int, error) {
	return l.index.Count(ctx)
}

// Close releases the ingestion workers, the AI provider, and the index.
func (l *Library) Close() error {
	l.pipeline.Release()

	var errs []error
	if err := l.provider.Close(); err != nil {
		l.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if err := l.index.Close(); err != nil {
		l.logger.Error("error closing index", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
