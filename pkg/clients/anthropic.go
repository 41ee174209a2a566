package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"
)

// NewAnthropic builds a client for the Anthropic messages API.
func NewAnthropic(cfg Config) (Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	opts := []anthropic.Option{
		anthropic.WithToken(cfg.APIKey),
		anthropic.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}
	model, err := anthropic.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create anthropic client: %w", err)
	}
	return newLangchainClient(cfg, ProviderAnthropic, model), nil
}
