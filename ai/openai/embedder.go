package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/primer/ai"
	"github.com/poiesic/primer/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
type Embedder struct {
	embedder       embeddings.Embedder
	model          string
	documentPrefix string
	queryPrefix    string
	logger         *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder:       embedder,
		model:          config.EmbeddingModel,
		documentPrefix: config.DocumentPrefix,
		queryPrefix:    config.QueryPrefix,
		logger:         slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// Model returns the configured embedding model.
func (e *Embedder) Model() string {
	return e.model
}

// Embed generates one vector per text. Document mode sends the whole slice in
// one request; query mode embeds each text separately.
func (e *Embedder) Embed(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.logger.Debug("generating embeddings", "count", len(texts), "mode", mode)

	switch mode {
	case core.EmbedModeDocument:
		vectors, err := e.embedder.EmbedDocuments(ctx, withPrefix(e.documentPrefix, texts))
		if err != nil {
			e.logger.Error("failed to generate embeddings", "count", len(texts), "mode", mode, "err", err)
			return nil, classify(ctx, err)
		}
		return vectors, nil

	case core.EmbedModeQuery:
		vectors := make([][]float32, len(texts))
		for i, text := range withPrefix(e.queryPrefix, texts) {
			vector, err := e.embedder.EmbedQuery(ctx, text)
			if err != nil {
				e.logger.Error("failed to generate query embedding", "index", i, "err", err)
				return nil, classify(ctx, err)
			}
			vectors[i] = vector
		}
		return vectors, nil

	default:
		return nil, fmt.Errorf("unsupported embed mode %s", mode)
	}
}

func withPrefix(prefix string, texts []string) []string {
	if prefix == "" {
		return texts
	}
	prefixed := make([]string, len(texts))
	for i, text := range texts {
		prefixed[i] = prefix + text
	}
	return prefixed
}
