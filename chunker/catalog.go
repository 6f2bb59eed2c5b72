package chunker

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyCatalog is returned when a catalog file lists no chapters.
	ErrEmptyCatalog = errors.New("catalog has no chapters")

	// ErrDuplicateChapter is returned when two chapters share a number.
	ErrDuplicateChapter = errors.New("duplicate chapter number")
)

// Chapter is one entry of a book's table of contents.
type Chapter struct {
	Number    int    `yaml:"number"`
	Name      string `yaml:"name"`
	StartPage int    `yaml:"start_page"` // zero-based page index where the chapter begins
}

// Catalog maps chapter numbers to names and page ranges.
// It implements ChapterLookup and ChapterNamer.
type Catalog struct {
	chapters []Chapter // sorted by StartPage
}

var (
	_ ChapterLookup = (*Catalog)(nil)
	_ ChapterNamer  = (*Catalog)(nil)
)

type catalogFile struct {
	Chapters []Chapter `yaml:"chapters"`
}

// LoadCatalog reads a YAML catalog:
//
//	chapters:
//	  - number: 1
//	    name: DC Circuits
//	    start_page: 0
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(file.Chapters...)
}

// NewCatalog builds a catalog from chapters in any order.
func NewCatalog(chapters ...Chapter) (*Catalog, error) {
	if len(chapters) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[int]bool, len(chapters))
	for _, ch := range chapters {
		if seen[ch.Number] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateChapter, ch.Number)
		}
		seen[ch.Number] = true
	}

	sorted := slices.Clone(chapters)
	slices.SortStableFunc(sorted, func(a, b Chapter) int {
		return a.StartPage - b.StartPage
	})
	return &Catalog{chapters: sorted}, nil
}

// Lookup returns the chapter whose start page is the greatest one not after
// sourceIndex. Pages before the first chapter are unlabeled.
func (c *Catalog) Lookup(sourceIndex int, _ string) (string, bool) {
	label := ""
	found := false
	for _, ch := range c.chapters {
		if ch.StartPage > sourceIndex {
			break
		}
		label = ch.Name
		found = true
	}
	return label, found
}

// ChapterName returns the name of chapter number.
func (c *Catalog) ChapterName(number int) (string, bool) {
	for _, ch := range c.chapters {
		if ch.Number == number {
			return ch.Name, true
		}
	}
	return "", false
}

// Chapters returns the catalog entries ordered by start page.
func (c *Catalog) Chapters() []Chapter {
	return slices.Clone(c.chapters)
}

// Names returns "<number>: <name>" lines for prompts, ordered by start page.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.chapters))
	for i, ch := range c.chapters {
		names[i] = strconv.Itoa(ch.Number) + ": " + ch.Name
	}
	return names
}
