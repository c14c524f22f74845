// Package hooks runs handler pipelines over Claude Code hook events read
// from stdin and answers with permission decisions on stdout.
package hooks

import (
	"encoding/json"
	"fmt"

	"hookline/internal/transcript"
)

// Event is one hook invocation as delivered on stdin. Known fields are
// typed; Raw keeps the full decoded payload so handlers can reach fields
// specific to newer hook events.
type Event struct {
	SessionID      string         `json:"session_id"`
	TranscriptPath string         `json:"transcript_path,omitempty"`
	CWD            string         `json:"cwd,omitempty"`
	PermissionMode string         `json:"permission_mode,omitempty"`
	HookEventName  string         `json:"hook_event_name"`
	ToolName       string         `json:"tool_name,omitempty"`
	ToolInput      map[string]any `json:"tool_input,omitempty"`
	ToolUseID      string         `json:"tool_use_id,omitempty"`
	ToolResponse   map[string]any `json:"tool_response,omitempty"`
	Prompt         string         `json:"prompt,omitempty"`
	Message        string         `json:"message,omitempty"`
	StopHookActive bool           `json:"stop_hook_active,omitempty"`

	Raw map[string]any `json:"-"`
}

// ParseEvent decodes a hook payload, retaining the raw field map.
func ParseEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decoding hook event: %w", err)
	}
	if err := json.Unmarshal(data, &event.Raw); err != nil {
		return nil, fmt.Errorf("decoding hook event: %w", err)
	}
	return &event, nil
}

// Field returns the optional string field named key from the raw payload.
func (e *Event) Field(key string) string {
	s, _ := e.Raw[key].(string)
	return s
}

// InputString returns a string field from the tool input, or "".
func (e *Event) InputString(key string) string {
	s, _ := e.ToolInput[key].(string)
	return s
}

// Transcript loads the session transcript the event points at. The
// transcript is loaded fresh on each call; events arrive as the log file
// grows, so cached state would go stale between hook invocations.
func (e *Event) Transcript() (*transcript.Transcript, error) {
	if e.TranscriptPath == "" {
		return nil, fmt.Errorf("hook event has no transcript_path")
	}
	t := transcript.New(e.TranscriptPath)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}
