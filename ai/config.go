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


package ai

import (
	"errors"
	"strings"
	"time"
)

// Default task prefixes follow embeddinggemma's retrieval prompts.
const (
	DefaultDocumentPrefix = "title: none | text: "
	DefaultQueryPrefix    = "task: search result | query: "
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// GeneratorHost is the base URL for the answer generation service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	GeneratorHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// GeneratorModel is the model identifier used to compose answers.
	// Example: "qwen2.5:7b", "gpt-4o-mini"
	GeneratorModel string

	// DocumentPrefix is prepended to passages embedded in document mode.
	DocumentPrefix string

	// QueryPrefix is prepended to questions embedded in query mode.
	QueryPrefix string

	// APIKey is sent as the bearer token. Local servers accept any value.
	APIKey string

	// GenerateRetries is the client-level attempt budget for rate-limited or
	// unavailable generation calls. Timeouts are never retried.
	// Default: 2
	GenerateRetries int

	// RequestTimeout bounds a single embedding request.
	// Default: 30s
	RequestTimeout time.Duration

	// GenerateTimeout bounds a single generation call.
	// Default: 2m
	GenerateTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGeneratorHost sets the generation service host URL.
func WithGeneratorHost(host string) ConfigOption {
	return func(c *Config) {
		c.GeneratorHost = host
	}
}

// WithHost sets both embedding and generator hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GeneratorHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithGeneratorModel sets the generation model identifier.
func WithGeneratorModel(model string) ConfigOption {
	return func(c *Config) {
		c.GeneratorModel = model
	}
}

// WithTaskPrefixes sets the document and query prefixes used for asymmetric embedding.
func WithTaskPrefixes(document, query string) ConfigOption {
	return func(c *Config) {
		c.DocumentPrefix = document
		c.QueryPrefix = query
	}
}

// WithAPIKey sets the API key sent to both services.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithGenerateRetries sets the client-level generation attempt budget.
func WithGenerateRetries(attempts int) ConfigOption {
	return func(c *Config) {
		c.GenerateRetries = attempts
	}
}

// WithTimeouts sets the per-request embedding and generation timeouts.
func WithTimeouts(request, generate time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = request
		c.GenerateTimeout = generate
	}
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and generation use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:   defaultHost,
		GeneratorHost:   defaultHost,
		EmbeddingModel:  "embeddinggemma",
		GeneratorModel:  "qwen2.5:7b",
		DocumentPrefix:  DefaultDocumentPrefix,
		QueryPrefix:     DefaultQueryPrefix,
		APIKey:          "none",
		GenerateRetries: 2,
		RequestTimeout:  30 * time.Second,
		GenerateTimeout: 2 * time.Minute,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithTaskPrefixes("search_document: ", "search_query: "),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = withV1(c.EmbeddingHost)
	c.GeneratorHost = withV1(c.GeneratorHost)
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

func withV1(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.GeneratorHost == "" {
		return errors.New("ai config: GeneratorHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.GeneratorModel == "" {
		return errors.New("ai config: GeneratorModel is required")
	}
	if c.DocumentPrefix == c.QueryPrefix && c.DocumentPrefix != "" {
		return errors.New("ai config: DocumentPrefix and QueryPrefix must differ")
	}
	if c.GenerateRetries < 1 {
		return errors.New("ai config: GenerateRetries must be at least 1")
	}
	if c.RequestTimeout < 0 || c.GenerateTimeout < 0 {
		return errors.New("ai config: timeouts cannot be negative")
	}
	return nil
}
