// Command condotto is an interactive chat CLI over the provider clients,
// with tools, memory, response caching, and a multi-agent task mode.
package main

import (
	"fmt"
	"os"

	"github.com/condotto-ai/condotto/pkg/agents"
	"github.com/condotto-ai/condotto/pkg/cache"
	"github.com/condotto-ai/condotto/pkg/clients"
	"github.com/condotto-ai/condotto/pkg/config"
	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/memory"
	"github.com/condotto-ai/condotto/pkg/metrics"
	"github.com/condotto-ai/condotto/pkg/tools"
)

func main() {
	cfg, err := parseCLIConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app, err := newApp(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := runREPL(app, os.Stdin, os.Stdout); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the REPL's runtime state.
type app struct {
	cfg     config.Config
	client  clients.Client
	mem     *memory.Memory
	toolset []tools.Tool
	tracker *metrics.Tracker
	system  *agents.System
	log     logger.Logger
}

// newApp wires the client, cache, tools, and multi-agent system from config.
func newApp(cfg config.Config) (*app, error) {
	level := logger.LevelInfo
	if cfg.Verbose {
		level = logger.LevelDebug
	}
	log := logger.NewWriterLogger(os.Stderr, level)

	responseCache, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := clients.ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = clients.APIKeyFromEnv(provider)
	}
	clientCfg := clients.Config{
		Provider:        provider,
		APIKey:          apiKey,
		Model:           cfg.Model,
		SystemPrompt:    cfg.SystemPrompt,
		Temperature:     cfg.Temperature,
		MaxTokens:       cfg.MaxTokens,
		BaseURL:         cfg.BaseURL,
		AzureEndpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
		AzureAPIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		Cache:           responseCache,
		Logger:          log,
	}
	client, err := clients.Create(clientCfg)
	if err != nil {
		return nil, err
	}

	tracker := metrics.NewTracker()
	system, err := buildSystem(cfg, clientCfg, tracker, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		client:  client,
		mem:     memory.New(),
		toolset: tools.Builtin(),
		tracker: tracker,
		system:  system,
		log:     log,
	}, nil
}

func buildCache(cfg config.Config) (cache.Cache, error) {
	if cfg.CacheDir != "" {
		return cache.NewFileCache(cfg.CacheDir, cfg.CacheTTL)
	}
	return cache.NewMemoryCache(cfg.CacheTTL), nil
}

// buildSystem creates the multi-agent system. Agents share the chat model
// and credentials but each gets its own client and system prompt. Agent
// requests skip the response cache since their tool calls have side effects
// on the shared bus.
func buildSystem(cfg config.Config, clientCfg clients.Config, tracker *metrics.Tracker, log logger.Logger) (*agents.System, error) {
	factory := func(systemPrompt string) (clients.Client, error) {
		agentCfg := clientCfg
		agentCfg.SystemPrompt = systemPrompt
		agentCfg.Cache = nil
		return clients.Create(agentCfg)
	}
	opts := []agents.SystemOption{
		agents.WithSystemLogger(log),
		agents.WithSystemTracker(tracker),
	}
	if cfg.AgentsFile != "" {
		return agents.NewSystemFromRoster(cfg.AgentsFile, factory, opts...)
	}
	return agents.NewSystem(factory, opts...)
}
