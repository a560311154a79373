package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding file settings,
// e.g. RECIPERAG_EMBEDDING_PROVIDER or RECIPERAG_INDEX_BATCH_SIZE. Only the
// prefixed names are read; a bare PATH or PORT never reaches the config.
const EnvPrefix = "RECIPERAG"

// Config holds all configuration for the recipe retrieval service.
type Config struct {
	Catalog    CatalogConfig    `yaml:"catalog"`
	Vectors    VectorsConfig    `yaml:"vectors"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Index      IndexConfig      `yaml:"index"`
	Retrieve   RetrieveConfig   `yaml:"retrieve"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// CatalogConfig locates the relational recipe store.
type CatalogConfig struct {
	Path string `yaml:"path" split_words:"true"`
}

// VectorsConfig locates the embedding store.
type VectorsConfig struct {
	Path        string        `yaml:"path" split_words:"true"`
	OpenTimeout time.Duration `yaml:"open_timeout" split_words:"true"`
}

// EmbeddingConfig holds embedding configuration. Model, APIKeyEnv and
// Dimension default to the provider's values when left empty.
type EmbeddingConfig struct {
	Provider  string        `yaml:"provider" split_words:"true"`    // "openai", "gemini", "ollama", "mock"
	Model     string        `yaml:"model" split_words:"true"`       // e.g., "text-embedding-3-small"
	BaseURL   string        `yaml:"base_url" split_words:"true"`    // overrides the provider default
	APIKeyEnv string        `yaml:"api_key_env" split_words:"true"` // Environment variable for API key
	Dimension int           `yaml:"dimension" split_words:"true"`
	Timeout   time.Duration `yaml:"timeout" split_words:"true"`
	CacheSize int           `yaml:"cache_size" split_words:"true"`
	CacheTTL  time.Duration `yaml:"cache_ttl" split_words:"true"`
}

// IndexConfig holds rebuild configuration.
type IndexConfig struct {
	BatchSize    int           `yaml:"batch_size" split_words:"true"`
	BatchRetries int           `yaml:"batch_retries" split_words:"true"`
	RetryDelay   time.Duration `yaml:"retry_delay" split_words:"true"`
	PruneOrphans bool          `yaml:"prune_orphans" split_words:"true"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	KRecipes              int `yaml:"k_recipes" split_words:"true"`
	KIngredients          int `yaml:"k_ingredients" split_words:"true"`
	BackfillPerIngredient int `yaml:"backfill_per_ingredient" split_words:"true"` // 0 = unbounded
}

// GenerationConfig configures the text generation service. Model and
// APIKeyEnv default to the provider's values when left empty.
type GenerationConfig struct {
	Provider    string        `yaml:"provider" split_words:"true"` // "openai", "gemini", "ollama", "none"
	Model       string        `yaml:"model" split_words:"true"`
	BaseURL     string        `yaml:"base_url" split_words:"true"`
	APIKeyEnv   string        `yaml:"api_key_env" split_words:"true"`
	Temperature float64       `yaml:"temperature" split_words:"true"`
	MaxTokens   int           `yaml:"max_tokens" split_words:"true"`
	Timeout     time.Duration `yaml:"timeout" split_words:"true"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" split_words:"true"`
	Port int    `yaml:"port" split_words:"true"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" split_words:"true"`
	Format string `yaml:"format" split_words:"true"` // "console" or "json"
}

// Provider describes a named OpenAI-compatible service.
type Provider struct {
	BaseURL         string
	APIKeyEnv       string
	EmbeddingModel  string
	Dimension       int
	GenerationModel string
}

// Providers are the services known by name. Any other OpenAI-compatible
// service works through an explicit base URL, model and dimension.
var Providers = map[string]Provider{
	"openai": {
		BaseURL:         "https://api.openai.com/v1",
		APIKeyEnv:       "OPENAI_API_KEY",
		EmbeddingModel:  "text-embedding-3-small",
		Dimension:       1536,
		GenerationModel: "gpt-4o-mini",
	},
	"gemini": {
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta/openai",
		APIKeyEnv:       "GOOGLE_API_KEY",
		EmbeddingModel:  "text-embedding-004",
		Dimension:       768,
		GenerationModel: "gemini-2.5-flash",
	},
	"ollama": {
		BaseURL:         "http://localhost:11434/v1",
		EmbeddingModel:  "nomic-embed-text",
		Dimension:       768,
		GenerationModel: "llama3.1",
	},
	"mock": {
		Dimension: 384,
	},
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cfg := baseConfig()
	cfg.ApplyProviderDefaults()
	return cfg
}

// baseConfig holds the defaults that do not depend on the chosen providers.
func baseConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			Path: filepath.Join("data", "recipes.sqlite"),
		},
		Vectors: VectorsConfig{
			Path:        filepath.Join("data", "vectors.db"),
			OpenTimeout: 2 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Timeout:   60 * time.Second,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Index: IndexConfig{
			BatchSize:    250,
			BatchRetries: 0,
			RetryDelay:   2 * time.Second,
			PruneOrphans: false,
		},
		Retrieve: RetrieveConfig{
			KRecipes:     8,
			KIngredients: 15,
		},
		Generation: GenerationConfig{
			Provider:    "openai",
			Temperature: 0.6,
			MaxTokens:   2000,
			Timeout:     120 * time.Second,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ApplyProviderDefaults fills the model, key variable and dimension settings
// left empty from the selected providers. Explicit values are kept.
func (c *Config) ApplyProviderDefaults() {
	if p, ok := Providers[c.Embedding.Provider]; ok {
		if c.Embedding.Model == "" {
			c.Embedding.Model = p.EmbeddingModel
		}
		if c.Embedding.APIKeyEnv == "" {
			c.Embedding.APIKeyEnv = p.APIKeyEnv
		}
		if c.Embedding.Dimension == 0 {
			c.Embedding.Dimension = p.Dimension
		}
	}
	if p, ok := Providers[c.Generation.Provider]; ok {
		if c.Generation.Model == "" {
			c.Generation.Model = p.GenerationModel
		}
		if c.Generation.APIKeyEnv == "" {
			c.Generation.APIKeyEnv = p.APIKeyEnv
		}
	}
}

// Load loads configuration from a YAML file and applies environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := baseConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyProviderDefaults()
	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for reciperag.yaml).
// A .env file in the directory is loaded first so API keys can live beside the project.
func LoadFromDir(dir string) (*Config, error) {
	if err := LoadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := filepath.Join(dir, "reciperag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".reciperag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	cfg := baseConfig()
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.ApplyProviderDefaults()
	return cfg, nil
}

// LoadDotEnv loads environment variables from a .env file.
// A missing file is not an error; variables already set are not overridden.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// ApplyEnv overrides cfg with RECIPERAG_* environment variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

// Validate reports settings no component can work with.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "openai", "gemini", "ollama", "mock":
	default:
		return fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider)
	}
	switch c.Generation.Provider {
	case "openai", "gemini", "ollama", "none":
	default:
		return fmt.Errorf("unsupported generation provider: %q", c.Generation.Provider)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Index.BatchRetries < 0 {
		return fmt.Errorf("index batch_retries must not be negative, got %d", c.Index.BatchRetries)
	}
	if c.Retrieve.KRecipes < 0 || c.Retrieve.KIngredients < 0 {
		return fmt.Errorf("retrieve k values must not be negative")
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve makes relative store paths relative to dir.
func (c *Config) Resolve(dir string) {
	if c.Catalog.Path != "" && !filepath.IsAbs(c.Catalog.Path) {
		c.Catalog.Path = filepath.Join(dir, c.Catalog.Path)
	}
	if c.Vectors.Path != "" && !filepath.IsAbs(c.Vectors.Path) {
		c.Vectors.Path = filepath.Join(dir, c.Vectors.Path)
	}
}

// EnsureDataDirs ensures the directories holding both stores exist.
func (c *Config) EnsureDataDirs() error {
	for _, p := range []string{c.Catalog.Path, c.Vectors.Path} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return err
		}
	}
	return nil
}
