package embedding

import (
	"fmt"
	"os"

	"reciperag/config"
	"reciperag/internal/port"
)

// FromConfig builds the embedder selected by cfg.
func FromConfig(cfg config.EmbeddingConfig) (port.Embedder, error) {
	switch cfg.Provider {
	case "mock":
		return NewMockEmbedder(cfg.Dimension), nil
	case "openai", "gemini", "ollama":
		keyEnv := cfg.APIKeyEnv
		if keyEnv == "" {
			keyEnv = config.Providers[cfg.Provider].APIKeyEnv
		}
		var apiKey string
		if keyEnv != "" {
			apiKey = os.Getenv(keyEnv)
			if apiKey == "" && cfg.Provider != "ollama" {
				return nil, fmt.Errorf("API key not found in environment variable: %s", keyEnv)
			}
		}
		return NewOpenAIEmbedder(OpenAIConfig{
			Provider:  cfg.Provider,
			APIKey:    apiKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
