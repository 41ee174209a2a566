// Package types defines the provider-agnostic content model shared by
// clients, memory, and agents: typed content blocks, media payloads, and
// model responses.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// MediaType identifies the kind of media payload.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// SourceType identifies how a media payload is referenced.
type SourceType string

const (
	SourceURL    SourceType = "url"
	SourceBase64 SourceType = "base64"
)

// Block is one unit of message content. Implementations are small value
// types; a message or response is an ordered slice of blocks.
type Block interface {
	blockType() string
}

// TextBlock is plain text content.
type TextBlock struct {
	Content string `json:"content"`
}

func (TextBlock) blockType() string { return "text" }

// Media describes a single media payload by reference (URL) or by value
// (base64 data).
type Media struct {
	Type       MediaType  `json:"media_type"`
	SourceType SourceType `json:"source_type"`
	Source     string     `json:"source"`
	MIMEType   string     `json:"mime_type,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

// MediaBlock pairs a media payload with the role that supplied it, for
// multimodal-capable providers.
type MediaBlock struct {
	Media Media `json:"media"`
	Role  Role  `json:"role"`
}

func (MediaBlock) blockType() string { return "media" }

// ToolCallBlock records a tool invocation requested by the model.
type ToolCallBlock struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func (ToolCallBlock) blockType() string { return "tool_call" }

// ToolResultBlock carries the locally produced result for a prior tool call.
type ToolResultBlock struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (ToolResultBlock) blockType() string { return "tool_result" }

// Text is a convenience constructor for a single-text-block input.
func Text(content string) []Block {
	return []Block{TextBlock{Content: content}}
}

type blockEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalBlocks serializes blocks with a type discriminator so they survive
// a round trip through the response cache.
func MarshalBlocks(blocks []Block) ([]byte, error) {
	envelopes := make([]blockEnvelope, 0, len(blocks))
	for _, b := range blocks {
		data, err := json.Marshal(b)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, blockEnvelope{Type: b.blockType(), Data: data})
	}
	return json.Marshal(envelopes)
}

// UnmarshalBlocks is the inverse of MarshalBlocks. Unknown block types are
// an error rather than silently dropped content.
func UnmarshalBlocks(data []byte) ([]Block, error) {
	var envelopes []blockEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(envelopes))
	for _, env := range envelopes {
		var (
			block Block
			err   error
		)
		switch env.Type {
		case "text":
			var b TextBlock
			err = json.Unmarshal(env.Data, &b)
			block = b
		case "media":
			var b MediaBlock
			err = json.Unmarshal(env.Data, &b)
			block = b
		case "tool_call":
			var b ToolCallBlock
			err = json.Unmarshal(env.Data, &b)
			block = b
		case "tool_result":
			var b ToolResultBlock
			err = json.Unmarshal(env.Data, &b)
			block = b
		default:
			return nil, fmt.Errorf("unknown block type %q", env.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s block: %w", env.Type, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// JoinText concatenates the text blocks of a block slice in order.
func JoinText(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if t, ok := b.(TextBlock); ok {
			sb.WriteString(t.Content)
		}
	}
	return sb.String()
}
