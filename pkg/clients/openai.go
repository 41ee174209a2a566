package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/media"
	"github.com/condotto-ai/condotto/pkg/schema"
	"github.com/condotto-ai/condotto/pkg/tools"
	"github.com/condotto-ai/condotto/pkg/types"
)

// defaultToolTurns bounds the model/tool round trips within one invocation.
const defaultToolTurns = 8

// OpenAIClient talks to the OpenAI chat completions API, or to an Azure
// OpenAI deployment when built via NewAzure.
type OpenAIClient struct {
	cfg      Config
	provider Provider
	api      openai.Client
	log      logger.Logger
}

// NewOpenAI builds a client for api.openai.com or an OpenAI-compatible
// endpoint when cfg.BaseURL is set.
func NewOpenAI(cfg Config) (*OpenAIClient, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{
		cfg:      cfg,
		provider: ProviderOpenAI,
		api:      openai.NewClient(opts...),
		log:      ensureLogger(cfg.Logger),
	}, nil
}

// NewAzure builds a client for an Azure OpenAI deployment. cfg.Model names
// the deployment.
func NewAzure(cfg Config) (*OpenAIClient, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.AzureEndpoint == "" {
		return nil, errors.New("azure endpoint is not set")
	}
	version := cfg.AzureAPIVersion
	if version == "" {
		version = "2024-10-21"
	}
	opts := []option.RequestOption{
		azure.WithEndpoint(cfg.AzureEndpoint, version),
		azure.WithAPIKey(cfg.APIKey),
	}
	return &OpenAIClient{
		cfg:      cfg,
		provider: ProviderAzure,
		api:      openai.NewClient(opts...),
		log:      ensureLogger(cfg.Logger),
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.APIKey == "" {
		return errors.New("API key is not set")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return errors.New("model is not set")
	}
	return nil
}

func ensureLogger(l logger.Logger) logger.Logger {
	if l == nil {
		return logger.Nop{}
	}
	return l
}

func (c *OpenAIClient) Provider() Provider { return c.provider }
func (c *OpenAIClient) Model() string      { return c.cfg.Model }

func (c *OpenAIClient) Invoke(ctx context.Context, input []types.Block, opts ...InvokeOption) (*types.Response, error) {
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

	resp, err := c.complete(ctx, o, c.buildMessages(o, input), nil)
	if err != nil {
		return nil, err
	}
	if key != "" {
		storeResponse(c.cfg.Cache, key, resp)
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

func (c *OpenAIClient) StreamInvoke(ctx context.Context, input []types.Block, fn StreamFunc, opts ...InvokeOption) (*types.Response, error) {
	o := applyInvokeOptions(opts)
	resp, err := c.complete(ctx, o, c.buildMessages(o, input), fn)
	if err != nil {
		return nil, err
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

func (c *OpenAIClient) StructuredResponse(ctx context.Context, input []types.Block, target any, opts ...InvokeOption) (*types.Response, error) {
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
		if err := json.Unmarshal([]byte(resp.Text()), target); err != nil {
			return nil, fmt.Errorf("decode structured response: %w", err)
		}
		recordExchange(o.memory, input, resp)
		return resp, nil
	}

	params := c.newParams(o, c.buildMessages(o, input))
	params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   "response",
				Schema: sch.Map(),
				Strict: openai.Bool(true),
			},
		},
	}
	completion, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("empty completion choices")
	}
	message := completion.Choices[0].Message
	if err := json.Unmarshal([]byte(message.Content), target); err != nil {
		return nil, fmt.Errorf("decode structured response: %w", err)
	}
	resp := &types.Response{
		Content:          []types.Block{types.TextBlock{Content: message.Content}},
		StopReason:       string(completion.Choices[0].FinishReason),
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		CachedTokens:     int(completion.Usage.PromptTokensDetails.CachedTokens),
	}
	if key != "" {
		storeResponse(c.cfg.Cache, key, resp)
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

// complete runs the model/tool loop. When fn is non-nil each round is
// streamed and text deltas are forwarded to it.
func (c *OpenAIClient) complete(ctx context.Context, o invokeOptions, messages []openai.ChatCompletionMessageParamUnion, fn StreamFunc) (*types.Response, error) {
	registry := tools.NewRegistry(o.tools...)
	resp := &types.Response{}
	current := messages

	for turn := 0; turn < o.toolTurns(); turn++ {
		message, usage, stopReason, err := c.runOnce(ctx, c.newParams(o, current), fn)
		if err != nil {
			return nil, err
		}
		resp.PromptTokens += int(usage.PromptTokens)
		resp.CompletionTokens += int(usage.CompletionTokens)
		resp.CachedTokens += int(usage.PromptTokensDetails.CachedTokens)

		if len(message.ToolCalls) == 0 {
			resp.Content = append(resp.Content, types.TextBlock{Content: message.Content})
			resp.StopReason = stopReason
			return resp, nil
		}

		logger.Debug(c.log, "tool calls requested", logger.Fields{
			"count": len(message.ToolCalls), "turn": turn + 1,
		})
		// Persist the assistant tool-call turn before appending tool results.
		current = append(current, message.ToParam())
		for _, call := range message.ToolCalls {
			resp.Content = append(resp.Content, types.ToolCallBlock{
				ID: call.ID, Name: call.Function.Name, Arguments: call.Function.Arguments,
			})
			output, err := registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
			if err != nil {
				output = fmt.Sprintf(`{"ok":false,"error":%q}`, err.Error())
			}
			resp.Content = append(resp.Content, types.ToolResultBlock{
				CallID: call.ID, Name: call.Function.Name, Content: output,
			})
			current = append(current, openai.ToolMessage(output, call.ID))
		}
	}
	return nil, errors.New("tool loop reached max turns without a final answer")
}

func (c *OpenAIClient) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, fn StreamFunc) (openai.ChatCompletionMessage, openai.CompletionUsage, string, error) {
	if fn == nil {
		completion, err := c.api.Chat.Completions.New(ctx, params)
		if err != nil {
			return openai.ChatCompletionMessage{}, openai.CompletionUsage{}, "", fmt.Errorf("openai completion: %w", err)
		}
		if len(completion.Choices) == 0 {
			return openai.ChatCompletionMessage{}, openai.CompletionUsage{}, "", errors.New("empty completion choices")
		}
		return completion.Choices[0].Message, completion.Usage, string(completion.Choices[0].FinishReason), nil
	}

	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}
	stream := c.api.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		if !acc.AddChunk(chunk) {
			return openai.ChatCompletionMessage{}, openai.CompletionUsage{}, "", errors.New("failed to accumulate stream")
		}
		if len(chunk.Choices) > 0 {
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if err := fn(ctx, delta); err != nil {
					return openai.ChatCompletionMessage{}, openai.CompletionUsage{}, "", err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return openai.ChatCompletionMessage{}, openai.CompletionUsage{}, "", fmt.Errorf("openai stream: %w", err)
	}
	if len(acc.Choices) == 0 {
		return openai.ChatCompletionMessage{}, openai.CompletionUsage{}, "", errors.New("empty streamed completion choices")
	}
	return acc.Choices[0].Message, acc.Usage, string(acc.Choices[0].FinishReason), nil
}

func (c *OpenAIClient) newParams(o invokeOptions, messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.cfg.Model),
		Messages: messages,
	}
	if t := o.temperatureOr(c.cfg.Temperature); t > 0 {
		params.Temperature = openai.Float(t)
	}
	if n := o.maxTokensOr(c.cfg.MaxTokens); n > 0 {
		params.MaxCompletionTokens = openai.Int(int64(n))
	}
	if len(o.tools) > 0 {
		for _, t := range o.tools {
			params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.Schema.Map()),
					Strict:      openai.Bool(t.Strict),
				},
			})
		}
		if o.toolChoice != ToolChoiceAuto {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: openai.String(string(o.toolChoice)),
			}
		}
	}
	return params
}

func (c *OpenAIClient) buildMessages(o invokeOptions, input []types.Block) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.cfg.SystemPrompt))
	}
	if o.memory != nil {
		for _, turn := range o.memory.Turns() {
			messages = appendTurn(messages, turn.Role, turn.Blocks)
		}
	}
	return appendTurn(messages, types.RoleUser, input)
}

// appendTurn translates one turn's blocks into chat messages. User text and
// media coalesce into a single multi-part message. For assistant turns the
// wire order matters: a tool-call message must precede its tool results, and
// any final text becomes its own assistant message after them.
func appendTurn(messages []openai.ChatCompletionMessageParamUnion, role types.Role, blocks []types.Block) []openai.ChatCompletionMessageParamUnion {
	var parts []openai.ChatCompletionContentPartUnionParam
	var assistantText strings.Builder
	var toolCalls []openai.ChatCompletionMessageToolCallParam

	flushCalls := func() {
		if len(toolCalls) == 0 {
			return
		}
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfAssistant: &openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls},
		})
		toolCalls = nil
	}

	for _, block := range blocks {
		switch b := block.(type) {
		case types.TextBlock:
			if role == types.RoleAssistant {
				assistantText.WriteString(b.Content)
			} else {
				parts = append(parts, openai.TextContentPart(b.Content))
			}
		case types.MediaBlock:
			img := openai.ChatCompletionContentPartImageImageURLParam{URL: media.DataURL(b.Media)}
			if b.Media.Detail != "" {
				img.Detail = b.Media.Detail
			}
			parts = append(parts, openai.ImageContentPart(img))
		case types.ToolCallBlock:
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: b.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      b.Name,
					Arguments: b.Arguments,
				},
			})
		case types.ToolResultBlock:
			flushCalls()
			messages = append(messages, openai.ToolMessage(b.Content, b.CallID))
		}
	}
	flushCalls()

	if len(parts) > 0 {
		messages = append(messages, openai.UserMessage(parts))
	}
	if role == types.RoleAssistant && assistantText.Len() > 0 {
		messages = append(messages, openai.AssistantMessage(assistantText.String()))
	}
	return messages
}

func schemaFor(target any) (*schema.Schema, error) {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Pointer {
		return nil, errors.New("structured response target must be a non-nil pointer")
	}
	return schema.FromType(t.Elem()), nil
}
