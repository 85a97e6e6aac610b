package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ordermesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  provider: openai
  model: gpt-4o-mini
  api_key: sk-file
catalog:
  path: shop.yaml
  store_name: Bean There
session:
  idle_timeout: 5m
engine:
  top_k: 3
`), 0o600))

	t.Setenv("ORDERMESH_LLM_MODEL", "gpt-4.1-mini")
	t.Setenv("ORDERMESH_SERVER_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model)
	assert.NotEmpty(t, cfg.LLM.APIKey)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "Bean There", cfg.Catalog.StoreName)
	assert.Equal(t, 5*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 3, cfg.Engine.TopK)
	// untouched defaults survive
	assert.Equal(t, 32, cfg.Engine.MaxConcurrentTurns)
	assert.Equal(t, "$", cfg.Catalog.Currency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefaultConfig_Validates(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }},
		{"missing api key", func(c *Config) { c.LLM.Provider = "anthropic" }},
		{"qdrant without url", func(c *Config) { c.Vector.Backend = "qdrant" }},
		{"pgvector without dsn", func(c *Config) { c.Vector.Backend = "pgvector" }},
		{"redis without url", func(c *Config) { c.Session.Backend = "redis" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"no catalog", func(c *Config) { c.Catalog.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
