package chunker

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/poiesic/primer/core"
)

// ChapterLookup resolves the chapter a chunk belongs to.
// Implementations return ok=false when no chapter matches.
type ChapterLookup interface {
	Lookup(sourceIndex int, text string) (label string, ok bool)
}

// ChapterNamer resolves a chapter number found in a page header to a name.
type ChapterNamer interface {
	ChapterName(number int) (name string, ok bool)
}

// LookupFunc adapts a function to ChapterLookup.
type LookupFunc func(sourceIndex int, text string) (string, bool)

// Lookup calls f.
func (f LookupFunc) Lookup(sourceIndex int, text string) (string, bool) {
	return f(sourceIndex, text)
}

// Page is a normalized page plus the chapter number detected on its raw text.
// Chapter is 0 when no header was seen.
type Page struct {
	Text    string
	Chapter int
}

// Chunker turns normalized pages into chunks, one per non-empty page.
type Chunker struct {
	lookup ChapterLookup
	logger *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLookup sets the chapter lookup used to label chunks.
func WithLookup(lookup ChapterLookup) Option {
	return func(c *Chunker) {
		c.lookup = lookup
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// New creates a Chunker. Without a lookup, chunks carry no chapter label.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "chunker")
	return c
}

// Chunk splits pages into chunks in input order. Pages that are empty after
// trimming are dropped, and IDs are assigned afterwards so they stay
// contiguous: "0", "1", ... over the retained chunks. SourceIndex keeps the
// original page position.
func (c *Chunker) Chunk(pages []string) []*core.Chunk {
	wrapped := make([]Page, len(pages))
	for i, text := range pages {
		wrapped[i] = Page{Text: text}
	}
	return c.ChunkPages(wrapped)
}

// ChunkPages is Chunk for pages that carry a detected chapter number. A
// detected number wins over the lookup's page-range answer when the lookup can
// name chapters.
func (c *Chunker) ChunkPages(pages []Page) []*core.Chunk {
	chunks := make([]*core.Chunk, 0, len(pages))
	dropped := 0

	for i, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			dropped++
			continue
		}

		chunk := &core.Chunk{
			ID:          strconv.Itoa(len(chunks)),
			Text:        text,
			SourceIndex: i,
		}
		chunk.ChapterLabel = c.label(i, page)
		chunks = append(chunks, chunk)
	}

	c.logger.Debug("chunked pages", "pages", len(pages), "chunks", len(chunks), "dropped", dropped)
	return chunks
}

func (c *Chunker) label(sourceIndex int, page Page) string {
	if c.lookup == nil {
		return ""
	}
	if page.Chapter > 0 {
		if namer, ok := c.lookup.(ChapterNamer); ok {
			if name, ok := namer.ChapterName(page.Chapter); ok {
				return name
			}
		}
	}
	if label, ok := c.lookup.Lookup(sourceIndex, page.Text); ok {
		return label
	}
	return ""
}
