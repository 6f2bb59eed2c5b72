package search

import (
	"log/slog"
	"time"

	"github.com/poiesic/primer/core"
)

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track intermediate steps and results.
type RetrievalMonitor interface {
	Start(query string, k int)
	AfterEmbedding(dimensions int, elapsed time.Duration)
	Hit(query string, result *core.SearchResult)
	Finish(results []*core.SearchResult, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                          {}
func (n *noopMonitor) AfterEmbedding(_ int, _ time.Duration)          {}
func (n *noopMonitor) Hit(_ string, _ *core.SearchResult)             {}
func (n *noopMonitor) Finish(_ []*core.SearchResult, _ time.Duration) {}

// LogMonitor writes retrieval progress to a logger at debug level.
type LogMonitor struct {
	Logger *slog.Logger
}

var _ RetrievalMonitor = (*LogMonitor)(nil)

// NewLogMonitor creates a monitor that logs to logger, or slog.Default() when
// logger is nil.
func NewLogMonitor(logger *slog.Logger) *LogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMonitor{Logger: logger.With("component", "retrieval-monitor")}
}

func (m *LogMonitor) Start(query string, k int) {
	m.Logger.Debug("retrieval started", "query", query, "k", k)
}

func (m *LogMonitor) AfterEmbedding(dimensions int, elapsed time.Duration) {
	m.Logger.Debug("query embedded", "dimensions", dimensions, "elapsed", elapsed)
}

func (m *LogMonitor) Hit(query string, result *core.SearchResult) {
	m.Logger.Debug("hit",
		"id", result.ID,
		"chapter", result.ChapterLabel,
		"score", result.Score,
		"matched_terms", matchedTerms(result.Text, query))
}

func (m *LogMonitor) Finish(results []*core.SearchResult, elapsed time.Duration) {
	m.Logger.Debug("retrieval finished", "hits", len(results), "elapsed", elapsed)
}
