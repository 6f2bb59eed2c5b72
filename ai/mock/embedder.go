package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/poiesic/primer/core"
)

// Dimensions is the length of vectors produced by MockEmbedder.
const Dimensions = 512

// The last two dimensions mark the embedding mode; words hash into the rest.
const (
	wordBuckets    = Dimensions - 2
	documentMarker = Dimensions - 2
	queryMarker    = Dimensions - 1
)

// MockEmbedder is a test double for ai.Embedder.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedFunc is called by Embed if set.
	// If nil, uses default bag-of-words behavior.
	EmbedFunc func(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error)

	// ModelName is returned by Model. Defaults to "mock-embedder".
	ModelName string

	mu        sync.Mutex
	callCount int
	modes     []core.EmbedMode
}

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{ModelName: "mock-embedder"}
}

// Embed returns deterministic bag-of-words vectors. Texts sharing words have
// positive similarity, and the same text embeds differently per mode.
func (m *MockEmbedder) Embed(ctx context.Context, texts []string, mode core.EmbedMode) ([][]float32, error) {
	m.mu.Lock()
	m.callCount++
	m.modes = append(m.modes, mode)
	fn := m.EmbedFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, texts, mode)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = BagOfWords(text, mode)
	}
	return vectors, nil
}

// Model returns the mock model name.
func (m *MockEmbedder) Model() string {
	if m.ModelName == "" {
		return "mock-embedder"
	}
	return m.ModelName
}

// CallCount returns the number of times Embed was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Modes returns the mode of every Embed call in call order.
func (m *MockEmbedder) Modes() []core.EmbedMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.EmbedMode(nil), m.modes...)
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.modes = nil
	m.EmbedFunc = nil
}

// BagOfWords hashes each lowercase word of text into a bucket, adds a
// mode marker, and returns the unit-length result.
func BagOfWords(text string, mode core.EmbedMode) []float32 {
	vector := make([]float32, Dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%wordBuckets]++
	}

	if mode == core.EmbedModeQuery {
		vector[queryMarker] = 0.5
	} else {
		vector[documentMarker] = 0.5
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
