package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/poiesic/primer/ai"
	"github.com/poiesic/primer/storage/qdrant"
	"gopkg.in/yaml.v3"
)

// Index backends.
const (
	BackendBadger = "badger"
	BackendQdrant = "qdrant"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the root configuration for a primer library.
type Config struct {
	// Collection names the index namespace the textbook is stored under.
	Collection string `yaml:"collection"`

	// Backend selects the vector index: "badger" or "qdrant".
	Backend string `yaml:"backend"`

	// DBPath is the badger data directory.
	DBPath string `yaml:"db_path"`

	// CatalogPath optionally points at a YAML chapter catalog.
	CatalogPath string `yaml:"catalog_path"`

	// TopK is the default number of passages retrieved per question.
	TopK int `yaml:"top_k"`

	// BatchSize is the number of chunks embedded and written together.
	BatchSize int `yaml:"batch_size"`

	// Concurrency is the number of ingestion batches processed at once.
	Concurrency int `yaml:"concurrency"`

	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
}

// EmbeddingConfig configures the embedding service.
type EmbeddingConfig struct {
	Host           string        `yaml:"host"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	DocumentPrefix string        `yaml:"document_prefix"`
	QueryPrefix    string        `yaml:"query_prefix"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// GeneratorConfig configures the answer generation service.
type GeneratorConfig struct {
	Host    string        `yaml:"host"`
	Model   string        `yaml:"model"`
	Retries int           `yaml:"retries"`
	Timeout time.Duration `yaml:"timeout"`
}

// QdrantConfig holds connection details for a Qdrant server.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Collection:  "textbook",
		Backend:     BackendBadger,
		DBPath:      "primer.db",
		TopK:        5,
		BatchSize:   100,
		Concurrency: 1,
		Embedding: EmbeddingConfig{
			Host:           aiDefaults.EmbeddingHost,
			Model:          aiDefaults.EmbeddingModel,
			DocumentPrefix: aiDefaults.DocumentPrefix,
			QueryPrefix:    aiDefaults.QueryPrefix,
			MaxRetries:     3,
			RetryDelay:     time.Second,
			RequestTimeout: aiDefaults.RequestTimeout,
		},
		Generator: GeneratorConfig{
			Host:    aiDefaults.GeneratorHost,
			Model:   aiDefaults.GeneratorModel,
			Retries: aiDefaults.GenerateRetries,
			Timeout: aiDefaults.GenerateTimeout,
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: qdrant.DefaultPort,
		},
	}
}

// Load reads a config file. An empty path returns the defaults; a path that
// does not exist is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result. Unknown
// keys are rejected so that misspelled settings do not pass silently.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch {
	case c.Collection == "":
		return fmt.Errorf("%w: collection is required", ErrInvalidConfig)
	case c.Backend != BackendBadger && c.Backend != BackendQdrant:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.Backend == BackendBadger && c.DBPath == "":
		return fmt.Errorf("%w: db_path is required for the badger backend", ErrInvalidConfig)
	case c.Backend == BackendQdrant && c.Qdrant.Host == "":
		return fmt.Errorf("%w: qdrant.host is required for the qdrant backend", ErrInvalidConfig)
	case c.TopK < 1:
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidConfig, c.TopK)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch_size must be at least 1, got %d", ErrInvalidConfig, c.BatchSize)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidConfig, c.Concurrency)
	case c.Embedding.MaxRetries < 1:
		return fmt.Errorf("%w: embedding.max_retries must be at least 1, got %d", ErrInvalidConfig, c.Embedding.MaxRetries)
	case c.Embedding.RetryDelay < 0:
		return fmt.Errorf("%w: embedding.retry_delay cannot be negative", ErrInvalidConfig)
	}

	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AIConfig returns the settings for the embedding and generation services.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithGeneratorHost(c.Generator.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithGeneratorModel(c.Generator.Model),
		ai.WithTaskPrefixes(c.Embedding.DocumentPrefix, c.Embedding.QueryPrefix),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithGenerateRetries(c.Generator.Retries),
		ai.WithTimeouts(c.Embedding.RequestTimeout, c.Generator.Timeout),
	)
}

// QdrantIndexConfig returns the connection settings for the qdrant backend.
func (c *Config) QdrantIndexConfig() qdrant.Config {
	return qdrant.Config{
		Host:   c.Qdrant.Host,
		Port:   c.Qdrant.Port,
		APIKey: c.Qdrant.APIKey,
		UseTLS: c.Qdrant.UseTLS,
	}
}
