package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/media"
	"github.com/condotto-ai/condotto/pkg/tools"
	"github.com/condotto-ai/condotto/pkg/types"
)

// langchainClient adapts an llms.Model to the Client interface. Anthropic
// and Mistral are served through it; the provider-specific part is only the
// constructor.
type langchainClient struct {
	cfg      Config
	provider Provider
	model    llms.Model
	log      logger.Logger
}

func newLangchainClient(cfg Config, provider Provider, model llms.Model) *langchainClient {
	return &langchainClient{
		cfg:      cfg,
		provider: provider,
		model:    model,
		log:      ensureLogger(cfg.Logger),
	}
}

func (c *langchainClient) Provider() Provider { return c.provider }
func (c *langchainClient) Model() string      { return c.cfg.Model }

func (c *langchainClient) Invoke(ctx context.Context, input []types.Block, opts ...InvokeOption) (*types.Response, error) {
	o := applyInvokeOptions(opts)

	key, err := cacheKeyFor(c.cfg, c.provider, o, input, "")
	if err != nil {
		return nil, err
	}
	if resp, ok := cachedResponse(c.cfg.Cache, key); ok {
		logger.Debug(c.log, "cache hit", logger.Fields{"provider": c.provider, "model": c.cfg.Model})
		recordExchange(o.memory, input, resp)
		return resp, nil
	}

	resp, err := c.generate(ctx, o, input, nil, nil)
	if err != nil {
		return nil, err
	}
	if key != "" {
		storeResponse(c.cfg.Cache, key, resp)
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

func (c *langchainClient) StreamInvoke(ctx context.Context, input []types.Block, fn StreamFunc, opts ...InvokeOption) (*types.Response, error) {
	o := applyInvokeOptions(opts)
	resp, err := c.generate(ctx, o, input, fn, nil)
	if err != nil {
		return nil, err
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

func (c *langchainClient) StructuredResponse(ctx context.Context, input []types.Block, target any, opts ...InvokeOption) (*types.Response, error) {
	o := applyInvokeOptions(opts)
	sch, err := schemaFor(target)
	if err != nil {
		return nil, err
	}

	key, err := cacheKeyFor(c.cfg, c.provider, o, input, sch.JSON())
	if err != nil {
		return nil, err
	}
	if resp, ok := cachedResponse(c.cfg.Cache, key); ok {
		logger.Debug(c.log, "cache hit", logger.Fields{"provider": c.provider, "model": c.cfg.Model})
		if err := json.Unmarshal([]byte(extractJSON(resp.Text())), target); err != nil {
			return nil, fmt.Errorf("decode structured response: %w", err)
		}
		recordExchange(o.memory, input, resp)
		return resp, nil
	}

	// No universal JSON-schema response format across these providers, so
	// the schema rides in the prompt and JSON mode constrains the output.
	instruction := types.TextBlock{Content: fmt.Sprintf(
		"Respond only with a JSON object matching this schema, with no extra text:\n%s", sch.JSON())}
	augmented := append(append([]types.Block{}, input...), instruction)

	resp, err := c.generate(ctx, o, augmented, nil, []llms.CallOption{llms.WithJSONMode()})
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text())), target); err != nil {
		return nil, fmt.Errorf("decode structured response: %w", err)
	}
	if key != "" {
		storeResponse(c.cfg.Cache, key, resp)
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

// generate runs the model/tool loop over llms.GenerateContent.
func (c *langchainClient) generate(ctx context.Context, o invokeOptions, input []types.Block, fn StreamFunc, extra []llms.CallOption) (*types.Response, error) {
	registry := tools.NewRegistry(o.tools...)
	resp := &types.Response{}

	messages := langchainMessages(c.cfg.SystemPrompt, o, input)
	callOpts := c.callOptions(o, fn)
	callOpts = append(callOpts, extra...)

	for turn := 0; turn < o.toolTurns(); turn++ {
		result, err := c.model.GenerateContent(ctx, messages, callOpts...)
		if err != nil {
			return nil, fmt.Errorf("%s completion: %w", c.provider, err)
		}
		if len(result.Choices) == 0 {
			return nil, errors.New("empty completion choices")
		}
		choice := result.Choices[0]
		prompt, completion := usageFromGenerationInfo(choice.GenerationInfo)
		resp.PromptTokens += prompt
		resp.CompletionTokens += completion

		if len(choice.ToolCalls) == 0 {
			resp.Content = append(resp.Content, types.TextBlock{Content: choice.Content})
			resp.StopReason = choice.StopReason
			return resp, nil
		}

		logger.Debug(c.log, "tool calls requested", logger.Fields{
			"count": len(choice.ToolCalls), "turn": turn + 1,
		})
		assistant := llms.MessageContent{Role: llms.ChatMessageTypeAI}
		for _, call := range choice.ToolCalls {
			assistant.Parts = append(assistant.Parts, call)
		}
		messages = append(messages, assistant)

		toolTurn := llms.MessageContent{Role: llms.ChatMessageTypeTool}
		for _, call := range choice.ToolCalls {
			resp.Content = append(resp.Content, types.ToolCallBlock{
				ID: call.ID, Name: call.FunctionCall.Name, Arguments: call.FunctionCall.Arguments,
			})
			output, err := registry.Execute(ctx, call.FunctionCall.Name, call.FunctionCall.Arguments)
			if err != nil {
				output = fmt.Sprintf(`{"ok":false,"error":%q}`, err.Error())
			}
			resp.Content = append(resp.Content, types.ToolResultBlock{
				CallID: call.ID, Name: call.FunctionCall.Name, Content: output,
			})
			toolTurn.Parts = append(toolTurn.Parts, llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.FunctionCall.Name,
				Content:    output,
			})
		}
		messages = append(messages, toolTurn)
	}
	return nil, errors.New("tool loop reached max turns without a final answer")
}

func (c *langchainClient) callOptions(o invokeOptions, fn StreamFunc) []llms.CallOption {
	var callOpts []llms.CallOption
	if t := o.temperatureOr(c.cfg.Temperature); t > 0 {
		callOpts = append(callOpts, llms.WithTemperature(t))
	}
	if n := o.maxTokensOr(c.cfg.MaxTokens); n > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(n))
	}
	if len(o.tools) > 0 {
		callOpts = append(callOpts, llms.WithTools(langchainTools(o.tools)))
		if o.toolChoice != ToolChoiceAuto {
			callOpts = append(callOpts, llms.WithToolChoice(string(o.toolChoice)))
		}
	}
	if fn != nil {
		callOpts = append(callOpts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return fn(ctx, string(chunk))
		}))
	}
	return callOpts
}

// langchainMessages renders the system prompt, memory and input as
// llms.MessageContent values.
func langchainMessages(systemPrompt string, o invokeOptions, input []types.Block) []llms.MessageContent {
	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	if o.memory != nil {
		for _, turn := range o.memory.Turns() {
			messages = appendLangchainTurn(messages, turn.Role, turn.Blocks)
		}
	}
	return appendLangchainTurn(messages, types.RoleUser, input)
}

func langchainRole(role types.Role) llms.ChatMessageType {
	switch role {
	case types.RoleSystem:
		return llms.ChatMessageTypeSystem
	case types.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func appendLangchainTurn(messages []llms.MessageContent, role types.Role, blocks []types.Block) []llms.MessageContent {
	var parts []llms.ContentPart
	flush := func(as llms.ChatMessageType) {
		if len(parts) == 0 {
			return
		}
		messages = append(messages, llms.MessageContent{Role: as, Parts: parts})
		parts = nil
	}

	for _, block := range blocks {
		switch b := block.(type) {
		case types.TextBlock:
			parts = append(parts, llms.TextPart(b.Content))
		case types.MediaBlock:
			parts = append(parts, llms.ImageURLPart(media.DataURL(b.Media)))
		case types.ToolCallBlock:
			flush(langchainRole(role))
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeAI,
				Parts: []llms.ContentPart{llms.ToolCall{
					ID:   b.ID,
					Type: "function",
					FunctionCall: &llms.FunctionCall{
						Name:      b.Name,
						Arguments: b.Arguments,
					},
				}},
			})
		case types.ToolResultBlock:
			flush(langchainRole(role))
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{llms.ToolCallResponse{
					ToolCallID: b.CallID,
					Name:       b.Name,
					Content:    b.Content,
				}},
			})
		}
	}
	flush(langchainRole(role))
	return messages
}

func langchainTools(ts []tools.Tool) []llms.Tool {
	out := make([]llms.Tool, 0, len(ts))
	for _, t := range ts {
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema.Map(),
			},
		})
	}
	return out
}

// usageFromGenerationInfo digs token counts out of a provider-specific
// GenerationInfo map. Key names differ per backend.
func usageFromGenerationInfo(info map[string]any) (prompt, completion int) {
	pick := func(keys ...string) int {
		for _, k := range keys {
			switch v := info[k].(type) {
			case int:
				return v
			case int64:
				return int(v)
			case float64:
				return int(v)
			}
		}
		return 0
	}
	prompt = pick("InputTokens", "PromptTokens", "prompt_tokens", "input_tokens")
	completion = pick("OutputTokens", "CompletionTokens", "completion_tokens", "output_tokens")
	return prompt, completion
}

// extractJSON trims code fences and surrounding prose, keeping the outermost
// JSON object. Models in JSON mode occasionally wrap their answer anyway.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
