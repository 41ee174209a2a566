package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/mistral"
)

// NewMistral builds a client for the Mistral chat API.
func NewMistral(cfg Config) (Client, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	opts := []mistral.Option{
		mistral.WithAPIKey(cfg.APIKey),
		mistral.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, mistral.WithEndpoint(cfg.BaseURL))
	}
	model, err := mistral.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create mistral client: %w", err)
	}
	return newLangchainClient(cfg, ProviderMistral, model), nil
}
