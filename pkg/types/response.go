package types

import "encoding/json"

// Response is the provider-agnostic result of one model invocation.
type Response struct {
	Content          []Block
	StopReason       string
	PromptTokens     int
	CompletionTokens int
	CachedTokens     int
}

// Text returns the concatenated text content of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return JoinText(r.Content)
}

// ToolCalls returns the tool invocations the model requested, in order.
func (r *Response) ToolCalls() []ToolCallBlock {
	if r == nil {
		return nil
	}
	var calls []ToolCallBlock
	for _, b := range r.Content {
		if c, ok := b.(ToolCallBlock); ok {
			calls = append(calls, c)
		}
	}
	return calls
}

// TotalTokens returns prompt plus completion token usage.
func (r *Response) TotalTokens() int {
	if r == nil {
		return 0
	}
	return r.PromptTokens + r.CompletionTokens
}

type responseEnvelope struct {
	Content          json.RawMessage `json:"content"`
	StopReason       string          `json:"stop_reason"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	CachedTokens     int             `json:"cached_tokens"`
}

// MarshalJSON implements json.Marshaler using the block envelope encoding.
func (r *Response) MarshalJSON() ([]byte, error) {
	content, err := MarshalBlocks(r.Content)
	if err != nil {
		return nil, err
	}
	return json.Marshal(responseEnvelope{
		Content:          content,
		StopReason:       r.StopReason,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		CachedTokens:     r.CachedTokens,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Response) UnmarshalJSON(data []byte) error {
	var env responseEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	blocks, err := UnmarshalBlocks(env.Content)
	if err != nil {
		return err
	}
	r.Content = blocks
	r.StopReason = env.StopReason
	r.PromptTokens = env.PromptTokens
	r.CompletionTokens = env.CompletionTokens
	r.CachedTokens = env.CachedTokens
	return nil
}
