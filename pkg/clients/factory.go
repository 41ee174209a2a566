package clients

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Provider identifies a supported backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAzure     Provider = "azure"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderMistral   Provider = "mistral"
)

// ParseProvider normalizes a provider name, accepting common aliases.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "":
		return ProviderOpenAI, nil
	case "azure", "azure_openai", "azure-openai":
		return ProviderAzure, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "google", "gemini":
		return ProviderGoogle, nil
	case "mistral":
		return ProviderMistral, nil
	}
	return "", fmt.Errorf("unknown provider: %q", s)
}

func defaultModel(p Provider) string {
	switch p {
	case ProviderAnthropic:
		return "claude-3-5-sonnet-latest"
	case ProviderGoogle:
		return "gemini-2.0-flash"
	case ProviderMistral:
		return "mistral-small-latest"
	default:
		return "gpt-4o-mini"
	}
}

// Create builds a client for cfg.Provider.
func Create(cfg Config) (Client, error) {
	if cfg.Model == "" {
		cfg.Model = defaultModel(cfg.Provider)
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAI(cfg)
	case ProviderAzure:
		return NewAzure(cfg)
	case ProviderAnthropic:
		return NewAnthropic(cfg)
	case ProviderGoogle:
		return NewGoogle(cfg)
	case ProviderMistral:
		return NewMistral(cfg)
	}
	return nil, fmt.Errorf("unknown provider: %q", cfg.Provider)
}

// keyEnvVars lists, in order, the environment variables consulted for a
// provider's API key after the generic LLM_API_KEY.
func keyEnvVars(p Provider) []string {
	switch p {
	case ProviderAzure:
		return []string{"AZURE_OPENAI_API_KEY"}
	case ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY"}
	case ProviderGoogle:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderMistral:
		return []string{"MISTRAL_API_KEY"}
	default:
		return []string{"OPENAI_API_KEY"}
	}
}

// APIKeyFromEnv returns the API key for p from its conventional environment
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...), or "" when unset.
func APIKeyFromEnv(p Provider) string {
	for _, name := range keyEnvVars(p) {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// FromEnv builds a client from LLM_PROVIDER, LLM_API_KEY, LLM_MODEL and
// LLM_TEMPERATURE, falling back to the provider's conventional key variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...) when LLM_API_KEY is unset.
func FromEnv() (Client, error) {
	provider, err := ParseProvider(os.Getenv("LLM_PROVIDER"))
	if err != nil {
		return nil, err
	}
	cfg := Config{
		Provider:        provider,
		APIKey:          os.Getenv("LLM_API_KEY"),
		Model:           os.Getenv("LLM_MODEL"),
		BaseURL:         os.Getenv("LLM_BASE_URL"),
		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
	}
	if cfg.APIKey == "" {
		cfg.APIKey = APIKeyFromEnv(provider)
	}
	if raw := os.Getenv("LLM_TEMPERATURE"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse LLM_TEMPERATURE: %w", err)
		}
		cfg.Temperature = t
	}
	return Create(cfg)
}
