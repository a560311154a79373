package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"reciperag/config"
	"reciperag/internal/domain"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
// It sends exactly one request per Embed call and never retries.
type OpenAIEmbedder struct {
	client    *openai.Client
	provider  string
	model     string
	dimension int
}

// OpenAIConfig holds configuration for OpenAIEmbedder.
type OpenAIConfig struct {
	Provider  string
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// NewOpenAIEmbedder creates an embedder. Empty fields fall back to the
// defaults of the provider named by cfg.Provider.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	preset := config.Providers[cfg.Provider]

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = preset.BaseURL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("no base URL for embedding provider %q", cfg.Provider)
	}

	model := cfg.Model
	if model == "" {
		model = preset.EmbeddingModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = preset.Dimension
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension for model %q must be configured", model)
	}

	apiKey := cfg.APIKey
	if apiKey == "" && cfg.Provider == "ollama" {
		apiKey = "ollama"
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &OpenAIEmbedder{
		client:    openai.NewClientWithConfig(clientCfg),
		provider:  cfg.Provider,
		model:     model,
		dimension: dimension,
	}, nil
}

// Embed returns one vector per text, in input order. Transport failures,
// API errors and malformed responses all yield *domain.ProviderError.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, wrapError("embed", len(texts), err)
	}

	if len(resp.Data) != len(texts) {
		return nil, domain.NewProviderError("embed", 0, len(texts),
			fmt.Errorf("%w: got %d vectors for %d texts", ErrMalformedResponse, len(resp.Data), len(texts)))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) || embeddings[data.Index] != nil {
			return nil, domain.NewProviderError("embed", 0, len(texts),
				fmt.Errorf("%w: unexpected index %d", ErrMalformedResponse, data.Index))
		}
		if len(data.Embedding) != e.dimension {
			return nil, domain.NewProviderError("embed", 0, len(texts),
				fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrMalformedResponse, data.Index, len(data.Embedding), e.dimension))
		}
		embeddings[data.Index] = data.Embedding
	}

	return embeddings, nil
}

// EmbedOne embeds a single text.
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Provider returns the configured provider name.
func (e *OpenAIEmbedder) Provider() string {
	return e.provider
}

// ErrMalformedResponse marks a response with the wrong count, order or
// dimension of vectors.
var ErrMalformedResponse = errors.New("malformed embedding response")

// wrapError converts a client error into a ProviderError covering the
// whole request.
func wrapError(op string, n int, err error) error {
	pe := domain.NewProviderError(op, 0, n, err)
	pe.Retryable = isRetryable(err)
	return pe
}

// isRetryable reports whether err is a failure a later attempt may not hit.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 0 || reqErr.HTTPStatusCode >= 500 || reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}

	return false
}
