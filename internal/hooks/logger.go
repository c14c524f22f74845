package hooks

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventLogger appends flattened hook events to per-session JSONL files
// under a directory, keeping a latest.jsonl symlink pointed at the most
// recent session. The flattened entries put the interesting field of each
// tool at the top level so the files grep well.
type EventLogger struct {
	dir string

	mu sync.Mutex
}

// NewEventLogger creates the log directory if needed and returns a logger
// writing into it.
func NewEventLogger(dir string) (*EventLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating hook log dir: %w", err)
	}
	return &EventLogger{dir: dir}, nil
}

// Dir returns the directory the logger writes into.
func (l *EventLogger) Dir() string { return l.dir }

// Log appends one event to the session's log file and repoints
// latest.jsonl at it. Events without a session id land in hooks-unknown.jsonl.
func (l *EventLogger) Log(raw map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := buildEntry(raw, time.Now().UTC().Format(time.RFC3339))

	session, _ := raw["session_id"].(string)
	if session == "" {
		session = "unknown"
	}
	name := fmt.Sprintf("hooks-%s.jsonl", session)
	path := filepath.Join(l.dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening hook log: %w", err)
	}
	defer file.Close()
	if err := json.NewEncoder(file).Encode(entry); err != nil {
		return fmt.Errorf("writing hook log: %w", err)
	}

	return l.updateSymlink(name)
}

// LogEvent appends a parsed event using its raw payload.
func (l *EventLogger) LogEvent(event *Event) error {
	return l.Log(event.Raw)
}

func (l *EventLogger) updateSymlink(target string) error {
	link := filepath.Join(l.dir, "latest.jsonl")
	if current, err := os.Readlink(link); err == nil && current == target {
		return nil
	}
	// Replace atomically enough for a log pointer.
	_ = os.Remove(link)
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("updating latest symlink: %w", err)
	}
	return nil
}

// buildEntry flattens a raw hook payload into one log line. Tool inputs
// are lifted into per-tool top-level keys; absent fields are omitted
// rather than written as nulls.
func buildEntry(raw map[string]any, timestamp string) map[string]any {
	entry := map[string]any{"ts": timestamp}

	putString := func(key string, value any) {
		if s, ok := value.(string); ok && s != "" {
			entry[key] = s
		}
	}

	if name, ok := raw["hook_event_name"].(string); ok {
		entry["event"] = name
	}
	putString("session_id", raw["session_id"])
	putString("cwd", raw["cwd"])
	putString("permission_mode", raw["permission_mode"])

	toolInput, _ := raw["tool_input"].(map[string]any)
	toolName, _ := raw["tool_name"].(string)
	if toolName != "" {
		entry["tool_name"] = toolName
	}

	switch toolName {
	case "Bash":
		putString("bash_command", toolInput["command"])
		putString("bash_description", toolInput["description"])
	case "Write", "Edit", "Read":
		putString("file_path", toolInput["file_path"])
	case "Grep":
		putString("grep_pattern", toolInput["pattern"])
	case "Glob":
		putString("glob_pattern", toolInput["pattern"])
	case "Task":
		putString("subagent_type", toolInput["subagent_type"])
		putString("subagent_model", toolInput["model"])
	case "WebSearch":
		putString("search_query", toolInput["query"])
	case "WebFetch":
		putString("fetch_url", toolInput["url"])
	}

	if response, ok := raw["tool_response"]; ok {
		entry["tool_response"] = response
		if toolName == "Task" {
			if m, ok := response.(map[string]any); ok {
				putString("agent_id", m["agentId"])
			}
		}
	}

	switch raw["hook_event_name"] {
	case "UserPromptSubmit":
		putString("prompt", raw["prompt"])
	case "Stop":
		if active, ok := raw["stop_hook_active"].(bool); ok {
			entry["stop_hook_active"] = active
		}
	case "SubagentStop":
		putString("agent_id", raw["agent_id"])
		if active, ok := raw["stop_hook_active"].(bool); ok {
			entry["stop_hook_active"] = active
		}
	case "SessionStart":
		putString("source", raw["source"])
		putString("transcript_path", raw["transcript_path"])
	case "SessionEnd":
		putString("reason", raw["reason"])
	case "PreCompact":
		putString("trigger", raw["trigger"])
	case "Notification":
		putString("message", raw["message"])
		putString("notification_type", raw["notification_type"])
	}

	return entry
}
