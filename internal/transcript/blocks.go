package transcript

import (
	"encoding/json"
	"strings"
)

// Block is one item of structured message content. The concrete types are
// TextBlock, ToolUseBlock, ToolResultBlock, ThinkingBlock, and UnknownBlock.
// Blocks never point back at the entry or transcript that contains them;
// cross-references (tool use <-> tool result) are resolved by ID through the
// transcript index at query time.
type Block interface {
	// BlockType returns the wire discriminator ("text", "tool_use", ...).
	// For UnknownBlock this is the original, unrecognized tag.
	BlockType() string

	isBlock()
}

// TextBlock is plain text content in a message.
type TextBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`

	// Extra holds wire fields outside the known schema, merged back on encode.
	Extra map[string]json.RawMessage `json:"-"`
}

func (b *TextBlock) BlockType() string { return b.Type }
func (b *TextBlock) isBlock()          {}

func (b *TextBlock) MarshalJSON() ([]byte, error) {
	type alias TextBlock
	return mergeExtra((*alias)(b), b.Extra)
}

// ToolUseBlock is the model invoking a tool.
type ToolUseBlock struct {
	Type  string         `json:"type"`
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (b *ToolUseBlock) BlockType() string { return b.Type }
func (b *ToolUseBlock) isBlock()          {}

func (b *ToolUseBlock) MarshalJSON() ([]byte, error) {
	type alias ToolUseBlock
	return mergeExtra((*alias)(b), b.Extra)
}

// ToolResultBlock is the outcome of a tool invocation, carried inside a user
// entry. Content is either a plain string or a list of content items on the
// wire; it is kept raw and exposed through Text and ContentItems.
type ToolResultBlock struct {
	Type      string          `json:"type"`
	ToolUseID string          `json:"tool_use_id"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   bool            `json:"is_error"`

	Extra map[string]json.RawMessage `json:"-"`

	// toolUseResult is the structured result from the containing entry's
	// toolUseResult field. It travels on the entry, not the block, so the
	// entry codec attaches it during decode.
	toolUseResult json.RawMessage
}

func (b *ToolResultBlock) BlockType() string { return b.Type }
func (b *ToolResultBlock) isBlock()          {}

func (b *ToolResultBlock) MarshalJSON() ([]byte, error) {
	type alias ToolResultBlock
	return mergeExtra((*alias)(b), b.Extra)
}

// Text returns the result as plain text. String content is returned as-is;
// structured content contributes the text field of each item.
func (b *ToolResultBlock) Text() string {
	if len(b.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(b.Content, &s); err == nil {
		return s
	}
	var parts []string
	for _, item := range b.ContentItems() {
		if text, ok := item["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}

// ContentItems returns structured content items, or nil for string content.
func (b *ToolResultBlock) ContentItems() []map[string]any {
	var items []map[string]any
	if err := json.Unmarshal(b.Content, &items); err != nil {
		return nil
	}
	return items
}

// ToolUseResult returns the tool's native structured result payload, if the
// containing entry carried one.
func (b *ToolResultBlock) ToolUseResult() json.RawMessage { return b.toolUseResult }

// ThinkingBlock is an extended reasoning trace. The signature is opaque and
// read-only; it cannot be regenerated once altered.
type ThinkingBlock struct {
	Type      string `json:"type"`
	Thinking  string `json:"thinking"`
	Signature string `json:"signature"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (b *ThinkingBlock) BlockType() string { return b.Type }
func (b *ThinkingBlock) isBlock()          {}

func (b *ThinkingBlock) MarshalJSON() ([]byte, error) {
	type alias ThinkingBlock
	return mergeExtra((*alias)(b), b.Extra)
}

// UnknownBlock preserves a content block with an unrecognized type tag.
// Nothing is discarded: the original tag and every raw field survive a
// decode/encode round trip. Callers that want a best-effort rendering can
// use Text.
type UnknownBlock struct {
	TypeTag string
	Fields  map[string]json.RawMessage
}

func (b *UnknownBlock) BlockType() string { return b.TypeTag }
func (b *UnknownBlock) isBlock()          {}

func (b *UnknownBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Fields)
}

// Text returns the block's text field if it has one, else "".
func (b *UnknownBlock) Text() string {
	raw, ok := b.Fields["text"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// ParseContentBlock decodes one content block, dispatching on the type field.
// toolUseResult is the containing entry's structured result payload; it is
// attached to tool_result blocks and ignored for every other type. Blocks
// with an unrecognized type decode to UnknownBlock.
func ParseContentBlock(raw json.RawMessage, toolUseResult json.RawMessage) (Block, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "text":
		var b TextBlock
		extra, err := decodeKnown(raw, (*textBlockAlias)(&b))
		if err != nil {
			return nil, err
		}
		b.Extra = extra
		return &b, nil
	case "tool_use":
		var b ToolUseBlock
		extra, err := decodeKnown(raw, (*toolUseBlockAlias)(&b))
		if err != nil {
			return nil, err
		}
		b.Extra = extra
		return &b, nil
	case "tool_result":
		var b ToolResultBlock
		extra, err := decodeKnown(raw, (*toolResultBlockAlias)(&b))
		if err != nil {
			return nil, err
		}
		b.Extra = extra
		b.toolUseResult = toolUseResult
		return &b, nil
	case "thinking":
		var b ThinkingBlock
		extra, err := decodeKnown(raw, (*thinkingBlockAlias)(&b))
		if err != nil {
			return nil, err
		}
		b.Extra = extra
		return &b, nil
	default:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		return &UnknownBlock{TypeTag: probe.Type, Fields: fields}, nil
	}
}

// EncodeBlock serializes a block back to its wire form. For every known-typed
// block, EncodeBlock is a left inverse of ParseContentBlock: all fields
// present in the input reappear with equal values.
func EncodeBlock(b Block) ([]byte, error) {
	return json.Marshal(b)
}

// parseContentBlocks decodes a JSON array of content blocks.
func parseContentBlocks(items []json.RawMessage, toolUseResult json.RawMessage) ([]Block, error) {
	blocks := make([]Block, 0, len(items))
	for _, item := range items {
		block, err := ParseContentBlock(item, toolUseResult)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// Unexported aliases strip the custom MarshalJSON so the codec helpers can
// marshal known fields without recursing.
type (
	textBlockAlias       TextBlock
	toolUseBlockAlias    ToolUseBlock
	toolResultBlockAlias ToolResultBlock
	thinkingBlockAlias   ThinkingBlock
)
