// Package config holds runtime configuration for the CLI.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the CLI.
type Config struct {
	Provider     string
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	MaxToolTurns int

	Stream  bool
	Verbose bool

	CacheDir string
	CacheTTL time.Duration

	AgentsFile string
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		Provider:     "openai",
		SystemPrompt: "You are a concise, helpful assistant.",
		MaxToolTurns: 8,
		CacheTTL:     time.Hour,
	}
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.Provider = strings.TrimSpace(strings.ToLower(cfg.Provider))
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt)
	cfg.CacheDir = strings.TrimSpace(cfg.CacheDir)
	cfg.AgentsFile = strings.TrimSpace(cfg.AgentsFile)

	if cfg.Provider == "" {
		cfg.Provider = "openai"
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0
	}
	if cfg.MaxTokens < 0 {
		cfg.MaxTokens = 0
	}
	if cfg.MaxToolTurns <= 0 {
		cfg.MaxToolTurns = 8
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return cfg
}

// FromEnv overlays environment variables onto cfg. Only set variables
// override existing values.
func FromEnv(cfg Config) Config {
	setString(&cfg.Provider, "LLM_PROVIDER")
	setString(&cfg.APIKey, "LLM_API_KEY")
	setString(&cfg.Model, "LLM_MODEL")
	setString(&cfg.BaseURL, "LLM_BASE_URL")
	setString(&cfg.SystemPrompt, "LLM_SYSTEM_PROMPT")
	setString(&cfg.CacheDir, "LLM_CACHE_DIR")
	setString(&cfg.AgentsFile, "LLM_AGENTS_FILE")

	if raw := os.Getenv("LLM_TEMPERATURE"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Temperature = v
		}
	}
	if raw := os.Getenv("LLM_MAX_TOKENS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.MaxTokens = v
		}
	}
	if raw := os.Getenv("LLM_MAX_TOOL_TURNS"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.MaxToolTurns = v
		}
	}
	if raw := os.Getenv("LLM_CACHE_TTL"); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			cfg.CacheTTL = v
		}
	}
	return cfg
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}
