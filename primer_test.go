package primer

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/primer/ai/mock"
	"github.com/poiesic/primer/answer"
	"github.com/poiesic/primer/chunker"
	"github.com/poiesic/primer/config"
	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/ingestion"
	"github.com/poiesic/primer/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scenarioPages = []string{
	"DC circuits use constant voltage.",
	"",
	"AC circuits use Fourier analysis.",
}

type fixture struct {
	lib       *Library
	embedder  *mock.MockEmbedder
	generator *mock.MockGenerator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	index, err := badger.NewMemoryIndex("textbook")
	require.NoError(t, err)

	embedder := mock.NewMockEmbedder()
	generator := mock.NewMockGenerator()
	provider := mock.NewMockProviderWithServices(embedder, generator)

	lib, err := New(index, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return &fixture{lib: lib, embedder: embedder, generator: generator}
}

func TestNew(t *testing.T) {
	index, err := badger.NewMemoryIndex("textbook")
	require.NoError(t, err)
	defer index.Close()

	t.Run("index required", func(t *testing.T) {
		_, err := New(nil, mock.NewMockProvider())
		assert.Equal(t, ErrIndexRequired, err)
	})

	t.Run("provider required", func(t *testing.T) {
		_, err := New(index, nil)
		assert.Equal(t, ErrProviderRequired, err)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := New(index, mock.NewMockProvider(), WithConfig(nil))
		assert.Equal(t, ErrConfigRequired, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := config.Default()
		cfg.TopK = 0
		_, err := New(index, mock.NewMockProvider(), WithConfig(cfg))
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})
}

func TestLibrary_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 2, report.IndexCount)

	count, err := f.lib.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := f.lib.Retrieve(ctx, "Fourier", 5)
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 2)
	require.NotEmpty(t, results)
	assert.Equal(t, "AC circuits use Fourier analysis.", results[0].Text)
	assert.Equal(t, "1", results[0].ID)
}

func TestLibrary_ReingestShorterBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)

	report, err := f.lib.Ingest(ctx, []string{"DC circuits use constant voltage."})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Chunks)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, report.IndexCount)

	results, err := f.lib.Retrieve(ctx, "Fourier analysis", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "DC circuits use constant voltage.", results[0].Text)
}

func TestLibrary_RetrieveDefaultK(t *testing.T) {
	cfg := config.Default()
	cfg.TopK = 1
	f := newFixture(t, WithConfig(cfg))
	ctx := context.Background()

	_, err := f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)

	results, err := f.lib.Retrieve(ctx, "circuits", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestLibrary_Ask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.generator.Responses = []string{
		"```json\n{\"answer\": \"AC circuits are analyzed with Fourier analysis.\", \"source_chapter\": \"\", \"keywords\": [\"AC\", \"Fourier\"]}\n```",
	}

	_, err := f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)

	got, err := f.lib.Ask(ctx, "How are AC circuits analyzed?", 0)
	require.NoError(t, err)
	assert.True(t, got.Grounded)
	assert.Equal(t, "AC circuits are analyzed with Fourier analysis.", got.Answer)
	assert.Equal(t, []string{"AC", "Fourier"}, got.Keywords)

	prompt := f.generator.LastPrompt()
	assert.Contains(t, prompt, "How are AC circuits analyzed?")
	assert.Contains(t, prompt, "AC circuits use Fourier analysis.")
	assert.Contains(t, prompt, "DC circuits use constant voltage.")
}

func TestLibrary_AskEmptyIndex(t *testing.T) {
	f := newFixture(t)

	got, err := f.lib.Ask(context.Background(), "What is Fourier analysis?", 5)
	require.NoError(t, err)
	assert.Equal(t, answer.NoGroundingAnswer(), got)
	assert.Zero(t, f.generator.CallCount())
}

func TestLibrary_AskMalformedAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.generator.Responses = []string{"Fourier analysis decomposes signals."}

	_, err := f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)

	_, err = f.lib.Ask(ctx, "What is Fourier analysis?", 2)
	assert.ErrorIs(t, err, core.ErrMalformedAnswer)
}

func TestLibrary_Catalog(t *testing.T) {
	catalog, err := chunker.NewCatalog(
		chunker.Chapter{Number: 1, Name: "DC Circuits", StartPage: 0},
		chunker.Chapter{Number: 2, Name: "AC Circuits", StartPage: 2},
	)
	require.NoError(t, err)

	f := newFixture(t, WithCatalog(catalog))
	ctx := context.Background()

	_, err = f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)

	entry, err := f.lib.Index().Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "AC Circuits", entry.ChapterLabel)

	_, err = f.lib.Ask(ctx, "Fourier", 2)
	require.NoError(t, err)
	assert.Contains(t, f.generator.LastPrompt(), "- 2: AC Circuits\n")
}

func TestLibrary_NewPipelineForce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)
	f.embedder.Reset()

	pipeline, err := f.lib.NewPipeline(ingestion.WithForce(true))
	require.NoError(t, err)
	defer pipeline.Release()

	report, err := pipeline.Ingest(ctx, scenarioPages)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Embedded)
	assert.Equal(t, 1, f.embedder.CallCount())
}

func TestLibrary_Reembed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lib.Ingest(ctx, scenarioPages)
	require.NoError(t, err)

	var out bytes.Buffer
	summary, err := f.lib.Reembed(ctx, false, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Skipped, "ingested vectors are already current")

	summary, err = f.lib.Reembed(ctx, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Reembedded)
}

func TestOpen(t *testing.T) {
	t.Run("badger backend", func(t *testing.T) {
		cfg := config.Default()
		cfg.DBPath = filepath.Join(t.TempDir(), "primer")

		lib, err := Open(WithConfig(cfg))
		require.NoError(t, err)

		count, err := lib.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Equal(t, "textbook", lib.Index().Collection())
		assert.NoError(t, lib.Close())
	})

	t.Run("loads catalog from config", func(t *testing.T) {
		dir := t.TempDir()
		catalogPath := filepath.Join(dir, "chapters.yaml")
		catalogYAML := strings.Join([]string{
			"chapters:",
			"  - number: 1",
			"    name: DC Circuits",
			"    start_page: 0",
		}, "\n")
		require.NoError(t, os.WriteFile(catalogPath, []byte(catalogYAML), 0o644))

		cfg := config.Default()
		cfg.DBPath = filepath.Join(dir, "primer")
		cfg.CatalogPath = catalogPath

		lib, err := Open(WithConfig(cfg))
		require.NoError(t, err)
		defer lib.Close()
		require.NotNil(t, lib.catalog)
		assert.Equal(t, []string{"1: DC Circuits"}, lib.catalog.Names())
	})

	t.Run("missing catalog", func(t *testing.T) {
		cfg := config.Default()
		cfg.DBPath = filepath.Join(t.TempDir(), "primer")
		cfg.CatalogPath = filepath.Join(t.TempDir(), "missing.yaml")

		_, err := Open(WithConfig(cfg))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("db path is a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(path, []byte("test"), 0o644))

		cfg := config.Default()
		cfg.DBPath = path
		_, err := Open(WithConfig(cfg))
		assert.ErrorIs(t, err, core.ErrIndexUnavailable)
	})
}
