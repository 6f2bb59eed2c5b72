package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/primer/ai"
	"github.com/poiesic/primer/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingServer is an OpenAI-compatible /embeddings endpoint that returns
// [len(input), index] for every input and records what it received.
type embeddingServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []embeddingRequest
	status   int
	delay    time.Duration
}

func newEmbeddingServer(t *testing.T) *embeddingServer {
	t.Helper()
	s := &embeddingServer{status: http.StatusOK}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

func (s *embeddingServer) handle(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	status, delay := s.status, s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error": {"message": "try again later"}}`))
		return
	}

	type datum struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]datum, len(req.Input))
	for i, text := range req.Input {
		data[i] = datum{Object: "embedding", Embedding: []float32{float32(len(text)), float32(i)}, Index: i}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
	})
}

func (s *embeddingServer) inputs() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.requests))
	for i, r := range s.requests {
		out[i] = r.Input
	}
	return out
}

func testEmbedder(t *testing.T, server *embeddingServer) *Embedder {
	t.Helper()
	cfg := ai.NewConfig(
		ai.WithHost(server.URL),
		ai.WithTaskPrefixes("doc: ", "query: "),
	)
	e, err := newEmbedder(cfg)
	require.NoError(t, err)
	return e
}

func TestEmbedder_DocumentMode(t *testing.T) {
	server := newEmbeddingServer(t)
	e := testEmbedder(t, server)

	vectors, err := e.Embed(context.Background(), []string{"alpha", "beta\ngamma"}, core.EmbedModeDocument)
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	inputs := server.inputs()
	require.Len(t, inputs, 1, "document mode sends one request")
	assert.Equal(t, []string{"doc: alpha", "doc: beta gamma"}, inputs[0])
	assert.Equal(t, []float32{float32(len("doc: alpha")), 0}, vectors[0])
	assert.Equal(t, []float32{float32(len("doc: beta gamma")), 1}, vectors[1])
}

func TestEmbedder_QueryMode(t *testing.T) {
	server := newEmbeddingServer(t)
	e := testEmbedder(t, server)

	vectors, err := e.Embed(context.Background(), []string{"what is AC", "ohm"}, core.EmbedModeQuery)
	require.NoError(t, err)
	require.Len(t, vectors, 2)

	assert.Equal(t, [][]string{{"query: what is AC"}, {"query: ohm"}}, server.inputs())
	assert.Equal(t, float32(len("query: ohm")), vectors[1][0])
}

func TestEmbedder_ModesDiffer(t *testing.T) {
	server := newEmbeddingServer(t)
	e := testEmbedder(t, server)

	doc, err := e.Embed(context.Background(), []string{"voltage"}, core.EmbedModeDocument)
	require.NoError(t, err)
	query, err := e.Embed(context.Background(), []string{"voltage"}, core.EmbedModeQuery)
	require.NoError(t, err)

	assert.NotEqual(t, doc[0], query[0])
}

func TestEmbedder_EmptyInput(t *testing.T) {
	server := newEmbeddingServer(t)
	e := testEmbedder(t, server)

	vectors, err := e.Embed(context.Background(), nil, core.EmbedModeDocument)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Empty(t, server.inputs())
}

func TestEmbedder_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newEmbeddingServer(t)
			server.status = tt.status
			e := testEmbedder(t, server)

			_, err := e.Embed(context.Background(), []string{"text"}, core.EmbedModeDocument)
			require.Error(t, err)
			assert.Equal(t, tt.transient, ai.IsTransient(err))
		})
	}
}

func TestEmbedder_DeadlineIsTransient(t *testing.T) {
	server := newEmbeddingServer(t)
	server.delay = time.Second
	e := testEmbedder(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Embed(ctx, []string{"slow"}, core.EmbedModeQuery)
	require.Error(t, err)
	assert.True(t, ai.IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbedder_UnknownMode(t *testing.T) {
	server := newEmbeddingServer(t)
	e := testEmbedder(t, server)

	_, err := e.Embed(context.Background(), []string{"x"}, core.EmbedMode(0))
	assert.Error(t, err)
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(&ai.Config{})
	assert.Error(t, err)
}
