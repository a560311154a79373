package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"reciperag/config"
	"reciperag/internal/domain"
	"reciperag/internal/port"
)

// ChatGenerator implements port.TextGenerator with a single-turn chat
// completion against an OpenAI-compatible endpoint.
type ChatGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// ChatConfig holds configuration for ChatGenerator.
type ChatConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func NewChatGenerator(cfg ChatConfig) (*ChatGenerator, error) {
	preset := config.Providers[cfg.Provider]
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = preset.BaseURL
	}
	if baseURL == "" {
		return nil, fmt.Errorf("no base URL for generation provider %q", cfg.Provider)
	}
	model := cfg.Model
	if model == "" {
		model = preset.GenerationModel
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

	return &ChatGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate sends prompt as the user message and returns the first choice.
func (g *ChatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: g.temperature,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", domain.NewProviderError("generate", 0, 0, describe(err))
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewProviderError("generate", 0, 0, errors.New("no choices in response"))
	}

	return resp.Choices[0].Message.Content, nil
}

func (g *ChatGenerator) ModelName() string {
	return g.model
}

// describe keeps the status code of API errors visible in the message.
func describe(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %w", apiErr.HTTPStatusCode, err)
	}
	return err
}

// FromConfig builds the generator selected by cfg. Provider "none"
// returns a nil generator: callers then stop at the rendered prompt.
func FromConfig(cfg config.GenerationConfig) (port.TextGenerator, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "openai", "gemini", "ollama":
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", cfg.Provider)
	}

	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" && cfg.Provider != "ollama" {
			return nil, fmt.Errorf("API key not found in environment variable: %s", cfg.APIKeyEnv)
		}
	}

	g, err := NewChatGenerator(ChatConfig{
		Provider:    cfg.Provider,
		APIKey:      apiKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}
