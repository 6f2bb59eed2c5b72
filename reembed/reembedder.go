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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/primer/core"
	"github.com/poiesic/primer/embedding"
	"github.com/poiesic/primer/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of entries read and re-embedded together
	BatchSize int

	// ReportInterval is how often to report progress (number of entries)
	ReportInterval int

	// Force re-embeds entries whose fingerprint is already current
	Force bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      embedding.DefaultBatchSize,
		ReportInterval: 100,
	}
}

// Summary describes a finished run.
type Summary struct {
	Total      int
	Reembedded int
	Skipped    int
	Elapsed    time.Duration
}

// Reembedder orchestrates the reembedding of every entry in an index.
type Reembedder struct {
	index     storage.VectorIndex
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(index storage.VectorIndex, batcher *embedding.Batcher, config *Config, progress io.Writer) (*Reembedder, error) {
	if index == nil {
		return nil, ErrIndexRequired
	}
	if batcher == nil {
		return nil, ErrBatcherRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = embedding.DefaultBatchSize
	}
	if config.ReportInterval <= 0 {
		config.ReportInterval = config.BatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		index:     index,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(index, batcher, config.Force),
		logger:    slog.Default().With("component", "reembedder", "model", batcher.Model()),
	}, nil
}

// Run re-embeds the index. Progress is reported to the configured writer.
// A failed batch stops the run; batches already written stay written.
func (r *Reembedder) Run(ctx context.Context) (*Summary, error) {
	total, err := r.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No entries found in collection %q (0 entries)\n", r.index.Collection())
		return &Summary{}, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %d entries (batch size: %d)\n",
		total, r.config.BatchSize)

	tally := newProgress(r.progress, total, r.config.ReportInterval, nil)
	err = r.index.ForEach(ctx, r.config.BatchSize, func(entries []*core.IndexEntry) error {
		n, err := r.processor.Process(ctx, entries)
		if err != nil {
			return fmt.Errorf("failed to process batch at entry %s: %w", entries[0].ID, err)
		}
		tally.record(n, len(entries)-n)
		return nil
	})
	summary := tally.summary()
	if err != nil {
		fmt.Fprintln(r.progress)
		r.logger.Error("reembedding stopped",
			"reembedded", summary.Reembedded,
			"skipped", summary.Skipped,
			"err", err)
		return summary, err
	}

	tally.done()

	fmt.Fprintf(r.progress, "Reembedding complete. Reembedded %d and skipped %d of %d entries in %v\n",
		summary.Reembedded, summary.Skipped, total, summary.Elapsed.Round(time.Millisecond))
	r.logger.Info("reembedding complete",
		"reembedded", summary.Reembedded,
		"skipped", summary.Skipped,
		"elapsed", summary.Elapsed)
	return summary, nil
}
