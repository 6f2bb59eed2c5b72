package mock

import (
	"context"
	"sync"
)

// DefaultAnswer is the response MockGenerator returns when nothing else is configured.
const DefaultAnswer = `{"answer": "mock answer", "source_chapter": "", "keywords": ["mock"]}`

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	// Responses are returned in order, cycling, when GenerateFunc is nil.
	// If empty, DefaultAnswer is returned.
	Responses []string

	mu         sync.Mutex
	callCount  int
	lastPrompt string
}

// NewMockGenerator creates a mock generator that returns DefaultAnswer.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{Responses: responses}
}

// Generate returns the next configured response.
func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	idx := m.callCount
	m.callCount++
	m.lastPrompt = prompt
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	if len(m.Responses) == 0 {
		return DefaultAnswer, nil
	}
	return m.Responses[idx%len(m.Responses)], nil
}

// CallCount returns the number of times Generate was called.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the prompt of the most recent call.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// Reset clears the call count and injected behavior.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastPrompt = ""
	m.GenerateFunc = nil
	m.Responses = nil
}
