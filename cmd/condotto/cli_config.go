package main

import (
	"flag"

	"github.com/joho/godotenv"

	"github.com/condotto-ai/condotto/pkg/config"
)

func parseCLIConfig() (config.Config, error) {
	_ = godotenv.Load()

	defaults := config.FromEnv(config.DefaultConfig())

	provider := flag.String("provider", defaults.Provider, "LLM provider (openai, azure, anthropic, google, mistral)")
	model := flag.String("model", defaults.Model, "Model name (empty for the provider default)")
	systemPrompt := flag.String("system_prompt", defaults.SystemPrompt, "System prompt for the chat client")
	temperature := flag.Float64("temperature", defaults.Temperature, "Sampling temperature")
	maxTokens := flag.Int("max_tokens", defaults.MaxTokens, "Max completion tokens (0 for the provider default)")
	maxToolTurns := flag.Int("max_tool_turns", defaults.MaxToolTurns, "Max tool-call turns per request")
	stream := flag.Bool("stream", defaults.Stream, "Stream assistant output")
	verbose := flag.Bool("verbose", defaults.Verbose, "Verbose request logging")
	cacheDir := flag.String("cache_dir", defaults.CacheDir, "Directory for the response cache (empty for in-memory)")
	cacheTTL := flag.Duration("cache_ttl", defaults.CacheTTL, "Time-to-live for cached responses")
	agentsFile := flag.String("agents_file", defaults.AgentsFile, "YAML roster for the /task agent system (empty for the built-in roster)")
	flag.Parse()

	cfg := defaults
	cfg.Provider = *provider
	cfg.Model = *model
	cfg.SystemPrompt = *systemPrompt
	cfg.Temperature = *temperature
	cfg.MaxTokens = *maxTokens
	cfg.MaxToolTurns = *maxToolTurns
	cfg.Stream = *stream
	cfg.Verbose = *verbose
	cfg.CacheDir = *cacheDir
	cfg.CacheTTL = *cacheTTL
	cfg.AgentsFile = *agentsFile
	return config.Normalize(cfg), nil
}
