package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"reciperag/config"
	"reciperag/internal/domain"
)

// fakeEmbeddingServer mimics the OpenAI embeddings endpoint. mutate may
// rewrite the response data before it is sent.
func fakeEmbeddingServer(t *testing.T, counter *atomic.Int64, dim int, mutate func([]map[string]any) []map[string]any) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		counter.Add(1)
		if r.URL.Path != "/embeddings" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(body.Input))
		for i, text := range body.Input {
			vec := make([]float64, dim)
			vec[0] = float64(len(text))
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": vec,
			}
		}
		if mutate != nil {
			data = mutate(data)
		}

		resp := map[string]any{
			"object": "list",
			"data":   data,
			"model":  body.Model,
			"usage": map[string]int{
				"prompt_tokens": len(body.Input),
				"total_tokens":  len(body.Input),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestEmbedder(t *testing.T, url string, dim int) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		Provider:  "openai",
		APIKey:    "test-key",
		BaseURL:   url,
		Model:     "test-model",
		Dimension: dim,
	})
	require.NoError(t, err)
	return e
}

func TestOpenAIEmbedder_EmbedEmpty(t *testing.T) {
	var counter atomic.Int64
	srv := fakeEmbeddingServer(t, &counter, 3, nil)
	defer srv.Close()

	vecs, err := newTestEmbedder(t, srv.URL, 3).Embed(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, vecs)
	require.Equal(t, int64(0), counter.Load(), "no HTTP request for empty input")
}

func TestOpenAIEmbedder_EmbedPreservesOrder(t *testing.T) {
	var counter atomic.Int64
	// reverse the data so positions only line up through the index field
	srv := fakeEmbeddingServer(t, &counter, 3, func(d []map[string]any) []map[string]any {
		for i, j := 0, len(d)-1; i < j; i, j = i+1, j-1 {
			d[i], d[j] = d[j], d[i]
		}
		return d
	})
	defer srv.Close()

	texts := []string{"a", "bb", "ccc"}
	vecs, err := newTestEmbedder(t, srv.URL, 3).Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, text := range texts {
		require.Len(t, vecs[i], 3)
		require.InDelta(t, float64(len(text)), float64(vecs[i][0]), 1e-6)
	}
	require.Equal(t, int64(1), counter.Load())
}

func TestOpenAIEmbedder_EmbedOne(t *testing.T) {
	var counter atomic.Int64
	srv := fakeEmbeddingServer(t, &counter, 4, nil)
	defer srv.Close()

	vec, err := newTestEmbedder(t, srv.URL, 4).EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	require.InDelta(t, 5.0, float64(vec[0]), 1e-6)
}

func TestOpenAIEmbedder_MalformedResponses(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]map[string]any) []map[string]any
	}{
		{"missing vector", func(d []map[string]any) []map[string]any { return d[:len(d)-1] }},
		{"wrong dimension", func(d []map[string]any) []map[string]any {
			d[1]["embedding"] = []float64{1, 2}
			return d
		}},
		{"duplicate index", func(d []map[string]any) []map[string]any {
			d[1]["index"] = 0
			return d
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var counter atomic.Int64
			srv := fakeEmbeddingServer(t, &counter, 3, tt.mutate)
			defer srv.Close()

			_, err := newTestEmbedder(t, srv.URL, 3).Embed(context.Background(), []string{"x", "y", "z"})
			require.Error(t, err)

			var pe *domain.ProviderError
			require.True(t, errors.As(err, &pe), "expected ProviderError, got %T", err)
			require.Equal(t, 0, pe.Start)
			require.Equal(t, 3, pe.End)
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"test"}}`))
		}))

		_, err := newTestEmbedder(t, srv.URL, 3).Embed(context.Background(), []string{"x"})
		srv.Close()

		var pe *domain.ProviderError
		require.True(t, errors.As(err, &pe), "status %d: expected ProviderError, got %v", tt.status, err)
		require.Equal(t, tt.retryable, pe.Retryable, "status %d", tt.status)
	}
}

func TestNewOpenAIEmbedder_ProviderDefaults(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{Provider: "gemini", APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, "text-embedding-004", e.ModelName())
	require.Equal(t, 768, e.Dimension())

	_, err = NewOpenAIEmbedder(OpenAIConfig{Provider: "somewhere"})
	require.Error(t, err, "unknown provider without base URL")
}

func TestFromConfig_GeminiFromEnvironment(t *testing.T) {
	t.Setenv("RECIPERAG_EMBEDDING_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "k")
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := config.LoadFromDir(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "GOOGLE_API_KEY", cfg.Embedding.APIKeyEnv)

	e, err := FromConfig(cfg.Embedding)
	require.NoError(t, err)
	require.Equal(t, "text-embedding-004", e.ModelName())
	require.Equal(t, 768, e.Dimension())
}
