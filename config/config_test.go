package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/confera")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8090", cfg.ListenAddr())
	assert.Equal(t, "http://localhost:11434/v1", cfg.LLM.BaseURL)
	assert.Equal(t, 0.75, cfg.QA.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.QA.TopK)
	assert.False(t, cfg.QA.AlwaysAutoAnswer)
}

func TestLoadPrefersConferaKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/other")
	t.Setenv("CONFERA_DATABASE_URL", "postgres://localhost/confera")
	t.Setenv("PORT", "9000")
	t.Setenv("CONFERA_PORT", "9001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/confera", cfg.Database.URL)
	assert.Equal(t, 9001, cfg.Server.Port)
}

func TestLoadFallbackKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/confera")
	t.Setenv("PORT", "9000")
	t.Setenv("OPENAI_BASE_URL", "http://llm.internal/v1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://llm.internal/v1", cfg.LLM.BaseURL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8090},
			Database: DatabaseConfig{URL: "postgres://localhost/confera"},
			LLM:      LLMConfig{BaseURL: "http://localhost:11434/v1", MaxTokens: 4096},
			Platform: PlatformConfig{BaseURL: "http://localhost:3000/api"},
			QA:       QAConfig{ConfidenceThreshold: 0.75, TopK: 3},
		}
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 0 }},
		{"missing database url", func(c *Config) { c.Database.URL = "" }},
		{"llm url without scheme", func(c *Config) { c.LLM.BaseURL = "localhost:11434" }},
		{"platform url without scheme", func(c *Config) { c.Platform.BaseURL = "ftp://nope" }},
		{"threshold above one", func(c *Config) { c.QA.ConfidenceThreshold = 1.5 }},
		{"threshold zero", func(c *Config) { c.QA.ConfidenceThreshold = 0 }},
		{"topk zero", func(c *Config) { c.QA.TopK = 0 }},
		{"max tokens zero", func(c *Config) { c.LLM.MaxTokens = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
