// Package config loads and validates service configuration from the
// environment. CONFERA_* keys take precedence; conventional names are
// accepted as fallbacks so the service slots into existing deployments.
package config

import (
	"fmt"
	"net/url"
	"strings"

	sharedconfig "github.com/confera/confera/shared/config"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	LLM      LLMConfig
	Platform PlatformConfig
	QA       QAConfig
}

type ServerConfig struct {
	Host             string
	Port             int
	AllowedOrigins   []string
	AllowEmptyOrigin bool
}

type DatabaseConfig struct {
	URL      string
	Timezone string
}

type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxTokens      int
}

type PlatformConfig struct {
	BaseURL string
	APIKey  string
}

type QAConfig struct {
	// ConfidenceThreshold is the minimum cosine similarity for a cached
	// answer to be served without generation. Range (0, 1].
	ConfidenceThreshold float64
	// TopK bounds how many cached pairs feed the generation context.
	TopK int
	// AlwaysAutoAnswer sends every generated answer straight to the
	// attendee. When false, low-confidence answers are escalated to an
	// organizer for review.
	AlwaysAutoAnswer bool
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:             sharedconfig.GetEnv("CONFERA_HOST", "0.0.0.0"),
			Port:             sharedconfig.GetEnvIntWithFallback("CONFERA_PORT", "PORT", 8090),
			AllowedOrigins:   sharedconfig.GetEnvSliceWithFallback("CONFERA_ALLOWED_ORIGINS", "ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowEmptyOrigin: sharedconfig.GetEnvBool("CONFERA_ALLOW_EMPTY_ORIGIN", true),
		},
		Database: DatabaseConfig{
			URL:      sharedconfig.GetEnvWithFallback("CONFERA_DATABASE_URL", "DATABASE_URL", ""),
			Timezone: sharedconfig.GetEnv("CONFERA_DB_TIMEZONE", "UTC"),
		},
		LLM: LLMConfig{
			BaseURL:        sharedconfig.GetEnvWithFallback("CONFERA_LLM_BASE_URL", "OPENAI_BASE_URL", "http://localhost:11434/v1"),
			APIKey:         sharedconfig.GetEnvWithFallback("CONFERA_LLM_API_KEY", "OPENAI_API_KEY", ""),
			Model:          sharedconfig.GetEnv("CONFERA_LLM_MODEL", "gpt-4o-mini"),
			EmbeddingModel: sharedconfig.GetEnv("CONFERA_EMBEDDING_MODEL", "text-embedding-3-small"),
			MaxTokens:      sharedconfig.GetEnvInt("CONFERA_LLM_MAX_TOKENS", 4096),
		},
		Platform: PlatformConfig{
			BaseURL: sharedconfig.GetEnvWithFallback("CONFERA_PLATFORM_URL", "PLATFORM_API_URL", "http://localhost:3000/api"),
			APIKey:  sharedconfig.GetEnvWithFallback("CONFERA_PLATFORM_API_KEY", "PLATFORM_API_KEY", ""),
		},
		QA: QAConfig{
			ConfidenceThreshold: sharedconfig.GetEnvFloat("CONFERA_QA_CONFIDENCE_THRESHOLD", 0.75),
			TopK:                sharedconfig.GetEnvInt("CONFERA_QA_TOP_K", 3),
			AlwaysAutoAnswer:    sharedconfig.GetEnvBool("CONFERA_QA_ALWAYS_AUTO_ANSWER", false),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent. It is
// called once at startup so every later component can trust its inputs.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("config: database URL is required")
	}
	if _, err := url.Parse(c.LLM.BaseURL); err != nil || !strings.HasPrefix(c.LLM.BaseURL, "http") {
		return fmt.Errorf("config: invalid LLM base URL %q", c.LLM.BaseURL)
	}
	if _, err := url.Parse(c.Platform.BaseURL); err != nil || !strings.HasPrefix(c.Platform.BaseURL, "http") {
		return fmt.Errorf("config: invalid platform base URL %q", c.Platform.BaseURL)
	}
	if c.QA.ConfidenceThreshold <= 0 || c.QA.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence threshold %v out of range (0, 1]", c.QA.ConfidenceThreshold)
	}
	if c.QA.TopK < 1 {
		return fmt.Errorf("config: QA top-k must be at least 1")
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("config: LLM max tokens must be positive")
	}
	return nil
}

// ListenAddr is the host:port the HTTP server binds.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
