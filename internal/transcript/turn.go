package transcript

import "strings"

// Turn is one logical assistant response: the assistant entries that share
// a request id, in file order. Streaming writes one transcript line per
// content block, so a single response usually spans several entries.
type Turn struct {
	RequestID string
	Entries   []*AssistantEntry
}

// Text concatenates the text blocks across the whole turn.
func (t *Turn) Text() string {
	var parts []string
	for _, entry := range t.Entries {
		if s := entry.Text(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// Thinking concatenates the thinking blocks across the whole turn.
func (t *Turn) Thinking() string {
	var parts []string
	for _, entry := range t.Entries {
		if s := entry.Thinking(); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolUses returns every tool invocation in the turn, in file order.
func (t *Turn) ToolUses() []*ToolUseBlock {
	var out []*ToolUseBlock
	for _, entry := range t.Entries {
		out = append(out, entry.ToolUses()...)
	}
	return out
}

// HasToolUse reports whether any entry in the turn invokes a tool.
func (t *Turn) HasToolUse() bool {
	for _, entry := range t.Entries {
		if entry.HasToolUse() {
			return true
		}
	}
	return false
}

// StopReason returns the last non-empty stop reason in the turn.
func (t *Turn) StopReason() string {
	for i := len(t.Entries) - 1; i >= 0; i-- {
		if r := t.Entries[i].StopReason(); r != "" {
			return r
		}
	}
	return ""
}

// IsComplete reports whether any entry in the turn reached a terminal
// stop. A stop reason of "tool_use" means the model paused for a tool
// round trip and more entries belong to the same request; anything else
// non-empty is terminal, wherever it sits in the turn.
func (t *Turn) IsComplete() bool {
	for _, entry := range t.Entries {
		if reason := entry.StopReason(); reason != "" && reason != "tool_use" {
			return true
		}
	}
	return false
}

// Usage sums token usage across the turn's entries.
func (t *Turn) Usage() Usage {
	var total Usage
	for _, entry := range t.Entries {
		if entry.Message == nil || entry.Message.Usage == nil {
			continue
		}
		u := entry.Message.Usage
		total.InputTokens += u.InputTokens
		total.OutputTokens += u.OutputTokens
		total.CacheCreationInputTokens += u.CacheCreationInputTokens
		total.CacheReadInputTokens += u.CacheReadInputTokens
	}
	return total
}
