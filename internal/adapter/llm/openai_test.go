package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"reciperag/config"
	"reciperag/internal/domain"
)

func fakeChatServer(t *testing.T, gotPrompt *string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model       string  `json:"model"`
			Temperature float64 `json:"temperature"`
			Messages    []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if len(body.Messages) > 0 {
			*gotPrompt = body.Messages[0].Content
		}

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   body.Model,
			"choices": []map[string]any{{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": "Title: Tomato Soup"}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestChatGenerator_Generate(t *testing.T) {
	var prompt string
	srv := fakeChatServer(t, &prompt)
	defer srv.Close()

	g, err := NewChatGenerator(ChatConfig{Provider: "openai", APIKey: "k", BaseURL: srv.URL, Model: "test", Temperature: 0.6})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "make soup")
	require.NoError(t, err)
	require.Equal(t, "Title: Tomato Soup", out)
	require.Equal(t, "make soup", prompt)
	require.Equal(t, "test", g.ModelName())
}

func TestChatGenerator_FailureIsProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	g, err := NewChatGenerator(ChatConfig{Provider: "openai", APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = g.Generate(context.Background(), "x")
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe), "expected ProviderError, got %v", err)
	require.Equal(t, "generate", pe.Op)
}

func TestFromConfig_None(t *testing.T) {
	g, err := FromConfig(config.GenerationConfig{Provider: "none"})
	require.NoError(t, err)
	require.Nil(t, g)
}

func TestFromConfig_MissingKey(t *testing.T) {
	t.Setenv("RECIPERAG_TEST_MISSING_KEY", "")
	_, err := FromConfig(config.GenerationConfig{Provider: "openai", APIKeyEnv: "RECIPERAG_TEST_MISSING_KEY"})
	require.Error(t, err)
}

func TestFromConfig_GeminiFromEnvironment(t *testing.T) {
	t.Setenv("RECIPERAG_GENERATION_PROVIDER", "gemini")
	t.Setenv("GOOGLE_API_KEY", "k")

	cfg, err := config.LoadFromDir(t.TempDir())
	require.NoError(t, err)

	g, err := FromConfig(cfg.Generation)
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash", g.ModelName())
}
