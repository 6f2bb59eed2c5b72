package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a 64-bit content digest.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// EmbedMode tells the embedding collaborator which retrieval direction a
// vector is for. Documents and queries share one vector space but are biased
// differently (asymmetric embedding).
type EmbedMode int

const (
	// EmbedModeDocument is used for passages stored in the index.
	EmbedModeDocument EmbedMode = iota + 1
	// EmbedModeQuery is used for user questions at retrieval time.
	EmbedModeQuery
)

func (m EmbedMode) String() string {
	switch m {
	case EmbedModeDocument:
		return "document"
	case EmbedModeQuery:
		return "query"
	default:
		return "unknown(" + strconv.Itoa(int(m)) + ")"
	}
}

// Chunk is a retrievable unit of source text. Chunks are produced once per
// ingestion run and never mutated afterwards.
type Chunk struct {
	ID           string // zero-based sequence number, unique within one ingestion run
	Text         string // normalized, never empty
	SourceIndex  int    // page position in the source document
	ChapterLabel string // empty when no chapter matched
}

// IndexEntry is the durable (id, text, vector) association held by a vector index.
type IndexEntry struct {
	ID           string
	Text         string
	ChapterLabel string
	SourceIndex  int
	Vector       []float32
	Fingerprint  ID        // digest of (model, mode, text) the vector was computed from
	UpdatedAt    time.Time // set by the index on write
}

// Fingerprint identifies the inputs a vector was derived from. Two entries
// with the same fingerprint do not need to be re-embedded.
func Fingerprint(model string, mode EmbedMode, text string) ID {
	return IDFromContent(model + "\x00" + mode.String() + "\x00" + text)
}

// SearchResult is a single ranked hit from a vector index query.
type SearchResult struct {
	ID           string
	Text         string
	ChapterLabel string
	Score        float32
}

// StructuredAnswer is the parsed answer returned for a question.
type StructuredAnswer struct {
	Answer        string   `json:"answer"`
	SourceChapter string   `json:"source_chapter"`
	Keywords      []string `json:"keywords"`

	// Grounded is false when no passages were retrieved and the answer is the
	// fixed no-grounding response.
	Grounded bool `json:"-"`
}
