package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/condotto-ai/condotto/pkg/logger"
	"github.com/condotto-ai/condotto/pkg/schema"
	"github.com/condotto-ai/condotto/pkg/tools"
	"github.com/condotto-ai/condotto/pkg/types"
)

// GoogleClient talks to the Gemini API via the genai SDK.
type GoogleClient struct {
	cfg Config
	api *genai.Client
	log logger.Logger
}

// NewGoogle builds a client for the Gemini API.
func NewGoogle(cfg Config) (*GoogleClient, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	api, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GoogleClient{cfg: cfg, api: api, log: ensureLogger(cfg.Logger)}, nil
}

func (c *GoogleClient) Provider() Provider { return ProviderGoogle }
func (c *GoogleClient) Model() string      { return c.cfg.Model }

func (c *GoogleClient) Invoke(ctx context.Context, input []types.Block, opts ...InvokeOption) (*types.Response, error) {
	o := applyInvokeOptions(opts)

	key, err := cacheKeyFor(c.cfg, ProviderGoogle, o, input, "")
	if err != nil {
		return nil, err
	}
	if resp, ok := cachedResponse(c.cfg.Cache, key); ok {
		logger.Debug(c.log, "cache hit", logger.Fields{"provider": ProviderGoogle, "model": c.cfg.Model})
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

func (c *GoogleClient) StreamInvoke(ctx context.Context, input []types.Block, fn StreamFunc, opts ...InvokeOption) (*types.Response, error) {
	o := applyInvokeOptions(opts)
	resp, err := c.generate(ctx, o, input, fn, nil)
	if err != nil {
		return nil, err
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

func (c *GoogleClient) StructuredResponse(ctx context.Context, input []types.Block, target any, opts ...InvokeOption) (*types.Response, error) {
	o := applyInvokeOptions(opts)
	sch, err := schemaFor(target)
	if err != nil {
		return nil, err
	}

	key, err := cacheKeyFor(c.cfg, ProviderGoogle, o, input, sch.JSON())
	if err != nil {
		return nil, err
	}
	if resp, ok := cachedResponse(c.cfg.Cache, key); ok {
		logger.Debug(c.log, "cache hit", logger.Fields{"provider": ProviderGoogle, "model": c.cfg.Model})
		if err := json.Unmarshal([]byte(resp.Text()), target); err != nil {
			return nil, fmt.Errorf("decode structured response: %w", err)
		}
		recordExchange(o.memory, input, resp)
		return resp, nil
	}

	structured := func(gc *genai.GenerateContentConfig) {
		gc.ResponseMIMEType = "application/json"
		gc.ResponseSchema = genaiSchema(sch)
	}
	resp, err := c.generate(ctx, o, input, nil, structured)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resp.Text()), target); err != nil {
		return nil, fmt.Errorf("decode structured response: %w", err)
	}
	if key != "" {
		storeResponse(c.cfg.Cache, key, resp)
	}
	recordExchange(o.memory, input, resp)
	return resp, nil
}

// generate runs the model/tool loop. adjust, when set, tweaks the generation
// config (used for structured output).
func (c *GoogleClient) generate(ctx context.Context, o invokeOptions, input []types.Block, fn StreamFunc, adjust func(*genai.GenerateContentConfig)) (*types.Response, error) {
	registry := tools.NewRegistry(o.tools...)
	resp := &types.Response{}

	contents, err := genaiContents(o, input)
	if err != nil {
		return nil, err
	}
	config := c.generationConfig(o)
	if adjust != nil {
		adjust(config)
	}

	for turn := 0; turn < o.toolTurns(); turn++ {
		content, usage, stopReason, err := c.runOnce(ctx, contents, config, fn)
		if err != nil {
			return nil, err
		}
		if usage != nil {
			resp.PromptTokens += int(usage.PromptTokenCount)
			resp.CompletionTokens += int(usage.CandidatesTokenCount)
			resp.CachedTokens += int(usage.CachedContentTokenCount)
		}

		calls := functionCalls(content)
		if len(calls) == 0 {
			resp.Content = append(resp.Content, types.TextBlock{Content: contentText(content)})
			resp.StopReason = stopReason
			return resp, nil
		}

		logger.Debug(c.log, "tool calls requested", logger.Fields{
			"count": len(calls), "turn": turn + 1,
		})
		contents = append(contents, content)
		feedback := &genai.Content{Role: genai.RoleUser}
		for _, call := range calls {
			id := call.ID
			if id == "" {
				id = uuid.NewString()
			}
			args, err := json.Marshal(call.Args)
			if err != nil {
				return nil, fmt.Errorf("encode tool arguments: %w", err)
			}
			resp.Content = append(resp.Content, types.ToolCallBlock{
				ID: id, Name: call.Name, Arguments: string(args),
			})
			output, err := registry.Execute(ctx, call.Name, string(args))
			if err != nil {
				output = fmt.Sprintf(`{"ok":false,"error":%q}`, err.Error())
			}
			resp.Content = append(resp.Content, types.ToolResultBlock{
				CallID: id, Name: call.Name, Content: output,
			})
			feedback.Parts = append(feedback.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       call.ID,
					Name:     call.Name,
					Response: responsePayload(output),
				},
			})
		}
		contents = append(contents, feedback)
	}
	return nil, errors.New("tool loop reached max turns without a final answer")
}

func (c *GoogleClient) runOnce(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, fn StreamFunc) (*genai.Content, *genai.GenerateContentResponseUsageMetadata, string, error) {
	if fn == nil {
		result, err := c.api.Models.GenerateContent(ctx, c.cfg.Model, contents, config)
		if err != nil {
			return nil, nil, "", fmt.Errorf("google completion: %w", err)
		}
		if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
			return nil, nil, "", errors.New("empty completion candidates")
		}
		cand := result.Candidates[0]
		return cand.Content, result.UsageMetadata, string(cand.FinishReason), nil
	}

	merged := &genai.Content{Role: genai.RoleModel}
	var usage *genai.GenerateContentResponseUsageMetadata
	var stopReason string
	for chunk, err := range c.api.Models.GenerateContentStream(ctx, c.cfg.Model, contents, config) {
		if err != nil {
			return nil, nil, "", fmt.Errorf("google stream: %w", err)
		}
		if chunk.UsageMetadata != nil {
			usage = chunk.UsageMetadata
		}
		if len(chunk.Candidates) == 0 || chunk.Candidates[0].Content == nil {
			continue
		}
		cand := chunk.Candidates[0]
		if cand.FinishReason != "" {
			stopReason = string(cand.FinishReason)
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				if err := fn(ctx, part.Text); err != nil {
					return nil, nil, "", err
				}
			}
			merged.Parts = append(merged.Parts, part)
		}
	}
	if len(merged.Parts) == 0 {
		return nil, nil, "", errors.New("empty streamed completion candidates")
	}
	return merged, usage, stopReason, nil
}

func (c *GoogleClient) generationConfig(o invokeOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if t := o.temperatureOr(c.cfg.Temperature); t > 0 {
		temp := float32(t)
		config.Temperature = &temp
	}
	if n := o.maxTokensOr(c.cfg.MaxTokens); n > 0 {
		config.MaxOutputTokens = int32(n)
	}
	if c.cfg.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.cfg.SystemPrompt}},
		}
	}
	if len(o.tools) > 0 {
		tool := &genai.Tool{}
		for _, t := range o.tools {
			tool.FunctionDeclarations = append(tool.FunctionDeclarations, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  genaiSchema(t.Schema),
			})
		}
		config.Tools = []*genai.Tool{tool}
		if mode, ok := genaiCallingMode(o.toolChoice); ok {
			config.ToolConfig = &genai.ToolConfig{
				FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
			}
		}
	}
	return config
}

func genaiCallingMode(choice ToolChoice) (genai.FunctionCallingConfigMode, bool) {
	switch choice {
	case ToolChoiceNone:
		return genai.FunctionCallingConfigModeNone, true
	case ToolChoiceRequired:
		return genai.FunctionCallingConfigModeAny, true
	}
	return "", false
}

// genaiContents renders memory and input as genai contents. Tool results fold
// into user-role function responses; assistant turns map to the model role.
func genaiContents(o invokeOptions, input []types.Block) ([]*genai.Content, error) {
	var contents []*genai.Content
	appendTurn := func(role types.Role, blocks []types.Block) error {
		genaiRole := genai.RoleUser
		if role == types.RoleAssistant {
			genaiRole = genai.RoleModel
		}
		content := &genai.Content{Role: genaiRole}
		for _, block := range blocks {
			switch b := block.(type) {
			case types.TextBlock:
				content.Parts = append(content.Parts, &genai.Part{Text: b.Content})
			case types.MediaBlock:
				part, err := genaiMediaPart(b.Media)
				if err != nil {
					return err
				}
				content.Parts = append(content.Parts, part)
			case types.ToolCallBlock:
				var args map[string]any
				if err := json.Unmarshal([]byte(b.Arguments), &args); err != nil {
					return fmt.Errorf("decode tool arguments for %s: %w", b.Name, err)
				}
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: b.ID, Name: b.Name, Args: args},
				})
			case types.ToolResultBlock:
				if len(content.Parts) > 0 {
					contents = append(contents, content)
					content = &genai.Content{Role: genaiRole}
				}
				contents = append(contents, &genai.Content{
					Role: genai.RoleUser,
					Parts: []*genai.Part{{
						FunctionResponse: &genai.FunctionResponse{
							ID:       b.CallID,
							Name:     b.Name,
							Response: responsePayload(b.Content),
						},
					}},
				})
			}
		}
		if len(content.Parts) > 0 {
			contents = append(contents, content)
		}
		return nil
	}

	if o.memory != nil {
		for _, turn := range o.memory.Turns() {
			if err := appendTurn(turn.Role, turn.Blocks); err != nil {
				return nil, err
			}
		}
	}
	if err := appendTurn(types.RoleUser, input); err != nil {
		return nil, err
	}
	return contents, nil
}

func genaiMediaPart(m types.Media) (*genai.Part, error) {
	if m.SourceType == types.SourceURL {
		return &genai.Part{
			FileData: &genai.FileData{FileURI: m.Source, MIMEType: m.MIMEType},
		}, nil
	}
	payload, err := base64.StdEncoding.DecodeString(m.Source)
	if err != nil {
		return nil, fmt.Errorf("decode media payload: %w", err)
	}
	return &genai.Part{
		InlineData: &genai.Blob{MIMEType: m.MIMEType, Data: payload},
	}, nil
}

func functionCalls(content *genai.Content) []*genai.FunctionCall {
	var calls []*genai.FunctionCall
	for _, part := range content.Parts {
		if part.FunctionCall != nil {
			calls = append(calls, part.FunctionCall)
		}
	}
	return calls
}

func contentText(content *genai.Content) string {
	var sb strings.Builder
	for _, part := range content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// responsePayload wraps a tool's JSON envelope for the function-response
// part, which wants a map rather than a string.
func responsePayload(output string) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(output), &payload); err != nil {
		return map[string]any{"output": output}
	}
	return payload
}

func genaiSchema(s *schema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Items:       genaiSchema(s.Items),
		Enum:        s.Enum,
	}
	switch s.Type {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		out.Type = genai.TypeString
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = genaiSchema(prop)
		}
	}
	return out
}
