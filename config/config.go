// Package config loads the ordermesh configuration from a YAML file and
// ORDERMESH_* environment variables.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. ORDERMESH_LLM_MODEL.
const EnvPrefix = "ORDERMESH"

// Config holds the complete application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Session   SessionConfig   `mapstructure:"session"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig configures the HTTP Turn API.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RateLimit is the sustained turns per second allowed per session.
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

// LLMConfig selects the chat model.
type LLMConfig struct {
	Provider  string        `mapstructure:"provider"` // openai, anthropic, mock
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// EmbeddingConfig selects the embedder.
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, hash
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
}

// VectorConfig selects the vector index.
type VectorConfig struct {
	Backend    string `mapstructure:"backend"` // memory, qdrant, pgvector
	URL        string `mapstructure:"url"`
	Collection string `mapstructure:"collection"`
	APIKey     string `mapstructure:"api_key"`
	DSN        string `mapstructure:"dsn"`
	Table      string `mapstructure:"table"`
	// IndexOnStart embeds the whole catalog into the index at startup.
	IndexOnStart bool `mapstructure:"index_on_start"`
}

// CatalogConfig locates the product catalog and rule table.
type CatalogConfig struct {
	Source string `mapstructure:"source"` // yaml, sqlite
	Path   string `mapstructure:"path"`
	// RulesPath optionally overrides the rules of the catalog with a YAML
	// rule table.
	RulesPath string `mapstructure:"rules_path"`
	StoreName string `mapstructure:"store_name"`
	Currency  string `mapstructure:"currency"`
}

// SessionConfig selects session persistence.
type SessionConfig struct {
	Backend         string        `mapstructure:"backend"` // memory, redis
	RedisURL        string        `mapstructure:"redis_url"`
	TTL             time.Duration `mapstructure:"ttl"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

// EngineConfig tunes the orchestrator and stages.
type EngineConfig struct {
	MaxConcurrentTurns int `mapstructure:"max_concurrent_turns"`
	MaxCallsPerTurn    int `mapstructure:"max_calls_per_turn"`
	HistoryWindow      int `mapstructure:"history_window"`
	TopK               int `mapstructure:"top_k"`
	RecommendLimit     int `mapstructure:"recommend_limit"`
}

// LoggingConfig configures the slog backend.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"` // text, json
	AddSource bool   `mapstructure:"add_source"`
}

// DefaultConfig returns a configuration that runs fully offline with the
// mock model, the hash embedder and in-memory stores.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 2 * time.Minute,
			RateLimit:    2,
			RateBurst:    5,
		},
		LLM: LLMConfig{
			Provider:  "mock",
			MaxTokens: 1024,
			Timeout:   30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 256,
		},
		Vector: VectorConfig{
			Backend:      "memory",
			Collection:   "products",
			Table:        "product_embedding",
			IndexOnStart: true,
		},
		Catalog: CatalogConfig{
			Source:    "yaml",
			Path:      "catalog.yaml",
			StoreName: "our shop",
			Currency:  "$",
		},
		Session: SessionConfig{
			Backend:         "memory",
			TTL:             24 * time.Hour,
			IdleTimeout:     30 * time.Minute,
			JanitorInterval: time.Minute,
		},
		Engine: EngineConfig{
			MaxConcurrentTurns: 32,
			MaxCallsPerTurn:    7,
			HistoryWindow:      8,
			TopK:               5,
			RecommendLimit:     3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configPath (or ./ordermesh.yaml when empty and present), then
// the environment. Missing files are only an error when configPath is set.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// provider conventions
	_ = v.BindEnv("llm.api_key", "ORDERMESH_LLM_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("embedding.api_key", "ORDERMESH_EMBEDDING_API_KEY", "OPENAI_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("ordermesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/ordermesh")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks enumerations and the settings each backend requires.
func (c *Config) Validate() error {
	if err := oneOf("llm.provider", c.LLM.Provider, "openai", "anthropic", "mock"); err != nil {
		return err
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.api_key is required for provider %s", c.LLM.Provider)
	}
	if err := oneOf("embedding.provider", c.Embedding.Provider, "openai", "hash"); err != nil {
		return err
	}
	if err := oneOf("vector.backend", c.Vector.Backend, "memory", "qdrant", "pgvector"); err != nil {
		return err
	}
	switch c.Vector.Backend {
	case "qdrant":
		if c.Vector.URL == "" || c.Vector.Collection == "" {
			return fmt.Errorf("vector.url and vector.collection are required for qdrant")
		}
	case "pgvector":
		if c.Vector.DSN == "" {
			return fmt.Errorf("vector.dsn is required for pgvector")
		}
	}
	if c.Vector.IndexOnStart && c.Embedding.Dimensions <= 0 && c.Vector.Backend != "memory" {
		return fmt.Errorf("embedding.dimensions is required to create the %s index", c.Vector.Backend)
	}
	if err := oneOf("catalog.source", c.Catalog.Source, "yaml", "sqlite"); err != nil {
		return err
	}
	if c.Catalog.Path == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if err := oneOf("session.backend", c.Session.Backend, "memory", "redis"); err != nil {
		return err
	}
	if c.Session.Backend == "redis" && c.Session.RedisURL == "" {
		return fmt.Errorf("session.redis_url is required for redis")
	}
	if c.Engine.MaxConcurrentTurns <= 0 {
		return fmt.Errorf("engine.max_concurrent_turns must be positive")
	}
	if err := oneOf("logging.format", c.Logging.Format, "text", "json"); err != nil {
		return err
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("invalid %s: %q (must be one of %s)", key, value, strings.Join(allowed, ", "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.rate_limit", d.Server.RateLimit)
	v.SetDefault("server.rate_burst", d.Server.RateBurst)

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.timeout", d.LLM.Timeout)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)

	v.SetDefault("vector.backend", d.Vector.Backend)
	v.SetDefault("vector.url", d.Vector.URL)
	v.SetDefault("vector.collection", d.Vector.Collection)
	v.SetDefault("vector.api_key", d.Vector.APIKey)
	v.SetDefault("vector.dsn", d.Vector.DSN)
	v.SetDefault("vector.table", d.Vector.Table)
	v.SetDefault("vector.index_on_start", d.Vector.IndexOnStart)

	v.SetDefault("catalog.source", d.Catalog.Source)
	v.SetDefault("catalog.path", d.Catalog.Path)
	v.SetDefault("catalog.rules_path", d.Catalog.RulesPath)
	v.SetDefault("catalog.store_name", d.Catalog.StoreName)
	v.SetDefault("catalog.currency", d.Catalog.Currency)

	v.SetDefault("session.backend", d.Session.Backend)
	v.SetDefault("session.redis_url", d.Session.RedisURL)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.idle_timeout", d.Session.IdleTimeout)
	v.SetDefault("session.janitor_interval", d.Session.JanitorInterval)

	v.SetDefault("engine.max_concurrent_turns", d.Engine.MaxConcurrentTurns)
	v.SetDefault("engine.max_calls_per_turn", d.Engine.MaxCallsPerTurn)
	v.SetDefault("engine.history_window", d.Engine.HistoryWindow)
	v.SetDefault("engine.top_k", d.Engine.TopK)
	v.SetDefault("engine.recommend_limit", d.Engine.RecommendLimit)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.add_source", d.Logging.AddSource)
}
