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


package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/primer"
	"github.com/poiesic/primer/config"
	"github.com/poiesic/primer/ingestion"
	"github.com/urfave/cli/v2"
)

// pageBreak separates pages in pdftotext-style dumps.
const pageBreak = "\f"

func main() {
	// A missing .env file is fine; flags and the environment still apply.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "primer",
		Usage: "Answer questions about a textbook from its own text",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"PRIMER_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"PRIMER_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
				EnvVars: []string{"PRIMER_DB"},
			},
			&cli.StringFlag{
				Name:    "collection",
				Usage:   "Collection the textbook is stored under",
				EnvVars: []string{"PRIMER_COLLECTION"},
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "Vector index backend (badger, qdrant)",
				EnvVars: []string{"PRIMER_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "catalog",
				Usage:   "Path to a YAML chapter catalog",
				EnvVars: []string{"PRIMER_CATALOG"},
			},
			&cli.StringFlag{
				Name:    "qdrant-host",
				Usage:   "Qdrant server host",
				EnvVars: []string{"PRIMER_QDRANT_HOST"},
			},
			&cli.IntFlag{
				Name:    "qdrant-port",
				Usage:   "Qdrant gRPC port",
				EnvVars: []string{"PRIMER_QDRANT_PORT"},
			},
			&cli.StringFlag{
				Name:    "qdrant-api-key",
				Usage:   "Qdrant API key",
				EnvVars: []string{"PRIMER_QDRANT_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "embedding-host",
				Usage:   "Embedding service host URL",
				EnvVars: []string{"PRIMER_EMBEDDING_HOST"},
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"PRIMER_EMBEDDING_MODEL"},
			},
			&cli.StringFlag{
				Name:    "generator-host",
				Usage:   "Answer generation service host URL",
				EnvVars: []string{"PRIMER_GENERATOR_HOST"},
			},
			&cli.StringFlag{
				Name:    "generator-model",
				Usage:   "Answer generation model name",
				EnvVars: []string{"PRIMER_GENERATOR_MODEL"},
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "API key for the embedding and generation services",
				EnvVars: []string{"PRIMER_API_KEY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Add textbook pages to the index",
				ArgsUsage: "FILE|DIR...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed every page even if its vector is current",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks embedded and written together",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of batches processed at once",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from the ingested textbook",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of passages to ground the answer in",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the answer as JSON",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Show the passages most similar to a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of passages to return",
					},
				},
			},
			{
				Name:   "count",
				Usage:  "Print the number of indexed passages",
				Action: countCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Recompute every stored vector with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Re-embed entries whose vector is already current",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of entries to process in each batch",
					},
				},
			},
		},
	}
}

// loadConfig reads the config file, if any, and applies the flags that were
// set on the command line or through the environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	stringFlags := map[string]*string{
		"db":              &cfg.DBPath,
		"collection":      &cfg.Collection,
		"backend":         &cfg.Backend,
		"catalog":         &cfg.CatalogPath,
		"qdrant-host":     &cfg.Qdrant.Host,
		"qdrant-api-key":  &cfg.Qdrant.APIKey,
		"embedding-host":  &cfg.Embedding.Host,
		"embedding-model": &cfg.Embedding.Model,
		"generator-host":  &cfg.Generator.Host,
		"generator-model": &cfg.Generator.Model,
		"api-key":         &cfg.Embedding.APIKey,
	}
	for name, dst := range stringFlags {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}

	intFlags := map[string]*int{
		"qdrant-port": &cfg.Qdrant.Port,
		"batch-size":  &cfg.BatchSize,
		"concurrency": &cfg.Concurrency,
	}
	for name, dst := range intFlags {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openLibrary(c *cli.Context) (*primer.Library, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	lib, err := primer.Open(primer.WithConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return lib, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file or directory is required")
	}

	pages, err := readPages(c.Args().Slice())
	if err != nil {
		return err
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	pipeline, err := lib.NewPipeline(ingestion.WithForce(c.Bool("force")))
	if err != nil {
		return err
	}
	defer pipeline.Release()

	report, err := pipeline.Ingest(c.Context, pages)
	if report != nil {
		fmt.Fprintf(c.App.Writer, "Pages: %d, chunks: %d, embedded: %d, skipped: %d, removed: %d, failed: %d\n",
			report.Pages, report.Chunks, report.Embedded, report.Skipped, report.Removed, report.FailedChunks())
		fmt.Fprintf(c.App.Writer, "Index now holds %d passages (%v)\n", report.IndexCount, report.Elapsed)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

// readPages returns the pages of every path in order. A file is split on
// form feeds; a directory contributes each of its .txt files, sorted by name.
func readPages(paths []string) ([]string, error) {
	var pages []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			filePages, err := readFile(path)
			if err != nil {
				return nil, err
			}
			pages = append(pages, filePages...)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if !entry.IsDir() && strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
				names = append(names, entry.Name())
			}
		}
		slices.Sort(names)
		for _, name := range names {
			filePages, err := readFile(filepath.Join(path, name))
			if err != nil {
				return nil, err
			}
			pages = append(pages, filePages...)
		}
	}
	return pages, nil
}

func readFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return strings.Split(string(data), pageBreak), nil
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("a question is required")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	answer, err := lib.Ask(c.Context, question, c.Int("k"))
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	fmt.Fprintln(c.App.Writer, answer.Answer)
	if answer.SourceChapter != "" {
		fmt.Fprintf(c.App.Writer, "\nSource chapter: %s\n", answer.SourceChapter)
	}
	if len(answer.Keywords) > 0 {
		fmt.Fprintf(c.App.Writer, "Keywords: %s\n", strings.Join(answer.Keywords, ", "))
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("a query is required")
	}

	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	results, err := lib.Retrieve(c.Context, query, c.Int("k"))
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		chapter := hit.ChapterLabel
		if chapter == "" {
			chapter = "-"
		}
		fmt.Fprintf(c.App.Writer, "%d: [%0.3f] (%s) #%s %s\n", i+1, hit.Score, chapter, hit.ID, hit.Text)
	}
	return nil
}

func countCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	n, err := lib.Count(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d passages in collection %q\n", n, lib.Config().Collection)
	return nil
}

func reembedCommand(c *cli.Context) error {
	lib, err := openLibrary(c)
	if err != nil {
		return err
	}
	defer lib.Close()

	cfg := lib.Config()
	fmt.Fprintf(c.App.ErrWriter, "Collection: %s\n", cfg.Collection)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := lib.Reembed(c.Context, c.Bool("force"), c.App.ErrWriter); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
