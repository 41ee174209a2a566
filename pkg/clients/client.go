// Package clients provides chat clients for several LLM providers behind one
// interface. Conversation state lives in pkg/memory; providers translate the
// shared block types to their own wire formats.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/condotto-ai/condotto/pkg/cache"
	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/memory"
	"github.com/condotto-ai/condotto/pkg/tools"
	"github.com/condotto-ai/condotto/pkg/types"
)

// StreamFunc receives text deltas as they arrive from a streaming call.
// Returning an error aborts the stream.
type StreamFunc func(ctx context.Context, chunk string) error

// ToolChoice controls whether the model may, must, or must not call tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Client is a chat client bound to one provider and model.
type Client interface {
	// Invoke sends the input blocks (prefixed by memory, when provided via
	// options) and returns the model's response. When tools are supplied the
	// client runs the tool loop itself: it executes requested handlers and
	// feeds results back until the model produces a final text answer.
	Invoke(ctx context.Context, input []types.Block, opts ...InvokeOption) (*types.Response, error)

	// StreamInvoke behaves like Invoke but delivers text deltas through fn
	// while the final response is being accumulated.
	StreamInvoke(ctx context.Context, input []types.Block, fn StreamFunc, opts ...InvokeOption) (*types.Response, error)

	// StructuredResponse asks the model for JSON conforming to the schema
	// derived from target's type, and unmarshals the answer into target.
	StructuredResponse(ctx context.Context, input []types.Block, target any, opts ...InvokeOption) (*types.Response, error)

	Provider() Provider
	Model() string
}

// Config carries everything needed to construct a provider client.
type Config struct {
	Provider        Provider
	APIKey          string
	Model           string
	SystemPrompt    string
	Temperature     float64
	MaxTokens       int
	BaseURL         string
	AzureEndpoint   string
	AzureAPIVersion string

	// Cache, when set, memoizes non-streaming tool-free responses.
	Cache cache.Cache
	// Logger defaults to logger.Nop{}.
	Logger logger.Logger
}

// InvokeOption adjusts a single call.
type InvokeOption func(*invokeOptions)

type invokeOptions struct {
	memory       *memory.Memory
	tools        []tools.Tool
	toolChoice   ToolChoice
	temperature  *float64
	maxTokens    *int
	maxToolTurns int
}

// WithMemory prepends the conversation history and records the exchange into
// it after a successful call.
func WithMemory(m *memory.Memory) InvokeOption {
	return func(o *invokeOptions) { o.memory = m }
}

// WithTools exposes tools to the model for this call.
func WithTools(ts ...tools.Tool) InvokeOption {
	return func(o *invokeOptions) { o.tools = append(o.tools, ts...) }
}

// WithToolChoice overrides the default "auto" tool choice.
func WithToolChoice(choice ToolChoice) InvokeOption {
	return func(o *invokeOptions) { o.toolChoice = choice }
}

// WithTemperature overrides the configured temperature for this call.
func WithTemperature(t float64) InvokeOption {
	return func(o *invokeOptions) { o.temperature = &t }
}

// WithMaxTokens overrides the configured completion token cap for this call.
func WithMaxTokens(n int) InvokeOption {
	return func(o *invokeOptions) { o.maxTokens = &n }
}

// WithMaxToolTurns caps the model/tool round trips within one invocation.
// Values below one fall back to the default of 8.
func WithMaxToolTurns(n int) InvokeOption {
	return func(o *invokeOptions) { o.maxToolTurns = n }
}

func applyInvokeOptions(opts []InvokeOption) invokeOptions {
	o := invokeOptions{toolChoice: ToolChoiceAuto}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o *invokeOptions) temperatureOr(fallback float64) float64 {
	if o.temperature != nil {
		return *o.temperature
	}
	return fallback
}

func (o *invokeOptions) maxTokensOr(fallback int) int {
	if o.maxTokens != nil {
		return *o.maxTokens
	}
	return fallback
}

func (o *invokeOptions) toolTurns() int {
	if o.maxToolTurns > 0 {
		return o.maxToolTurns
	}
	return defaultToolTurns
}

// recordExchange appends the user input and the assistant reply to memory.
// Called only after a successful invocation so failed calls leave history
// untouched, matching Invoke's contract.
func recordExchange(m *memory.Memory, input []types.Block, resp *types.Response) {
	if m == nil {
		return
	}
	m.AddTurn(input, types.RoleUser)
	m.AddTurn(resp.Content, types.RoleAssistant)
}

// requestKey fingerprints a request for the response cache. Tool-bearing
// requests must not reach here: executing handlers is a side effect, so those
// calls bypass the cache entirely.
func requestKey(provider Provider, model, systemPrompt string, history []memory.Turn, input []types.Block, temperature float64, maxTokens int, structured string) (string, error) {
	parts := []string{string(provider), model, systemPrompt,
		strconv.FormatFloat(temperature, 'g', -1, 64), strconv.Itoa(maxTokens), structured}
	for _, turn := range history {
		payload, err := types.MarshalBlocks(turn.Blocks)
		if err != nil {
			return "", fmt.Errorf("fingerprint history: %w", err)
		}
		parts = append(parts, string(turn.Role), string(payload))
	}
	payload, err := types.MarshalBlocks(input)
	if err != nil {
		return "", fmt.Errorf("fingerprint input: %w", err)
	}
	parts = append(parts, string(payload))
	return cache.Fingerprint(parts...), nil
}

// cacheKeyFor returns the cache key for a call, or "" when caching does not
// apply (no cache configured, or the call carries tools).
func cacheKeyFor(cfg Config, provider Provider, o invokeOptions, input []types.Block, structured string) (string, error) {
	if cfg.Cache == nil || len(o.tools) > 0 {
		return "", nil
	}
	var history []memory.Turn
	if o.memory != nil {
		history = o.memory.Turns()
	}
	return requestKey(provider, cfg.Model, cfg.SystemPrompt, history, input,
		o.temperatureOr(cfg.Temperature), o.maxTokensOr(cfg.MaxTokens), structured)
}

// cachedResponse returns the decoded cached response for key, if present.
func cachedResponse(c cache.Cache, key string) (*types.Response, bool) {
	if c == nil {
		return nil, false
	}
	raw, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	var resp types.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, false
	}
	// A cache hit consumes no new prompt tokens; report the prompt cost as
	// cached so metrics can compute hit rates.
	resp.CachedTokens = resp.PromptTokens
	resp.PromptTokens = 0
	return &resp, true
}

func storeResponse(c cache.Cache, key string, resp *types.Response) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	c.Set(key, raw)
}
