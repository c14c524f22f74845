package observe

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func readEvents(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	var events []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		events = append(events, event)
	}
	return events
}

func TestFileBackend_EmitWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events", "observe.jsonl")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer backend.Close()

	event := NewEvent(HookEnter, "s1", "pre_tool:Bash")
	if err := backend.Emit(event); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	got := events[0]
	if got["event_type"] != "hook_enter" || got["hook_name"] != "pre_tool:Bash" {
		t.Errorf("event = %v", got)
	}
	if got["request_id"] == "" {
		t.Error("request_id not defaulted")
	}
}

func TestFileBackend_ConcurrentEmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observe.jsonl")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer backend.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = backend.Emit(NewEvent(Custom, "s1", "h"))
		}()
	}
	wg.Wait()

	if got := len(readEvents(t, path)); got != 10 {
		t.Errorf("got %d events, want 10 intact lines", got)
	}
}

func TestSpan_CorrelatesByRequestID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observe.jsonl")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer backend.Close()

	span := Start(backend, "s1", "on_stop")
	span.Decision("deny", "not finished")
	span.End()

	events := readEvents(t, path)
	if len(events) != 3 {
		t.Fatalf("got %d events, want enter/decision/exit", len(events))
	}
	if events[0]["event_type"] != "hook_enter" ||
		events[1]["event_type"] != "decision" ||
		events[2]["event_type"] != "hook_exit" {
		t.Errorf("event order = %v, %v, %v",
			events[0]["event_type"], events[1]["event_type"], events[2]["event_type"])
	}
	requestID := events[0]["request_id"]
	for i, event := range events {
		if event["request_id"] != requestID {
			t.Errorf("event %d has request_id %v, want %v", i, event["request_id"], requestID)
		}
	}
	if events[1]["decision"] != "deny" || events[1]["reason"] != "not finished" {
		t.Errorf("decision event = %v", events[1])
	}
	if _, ok := events[2]["duration_ms"]; !ok {
		t.Error("hook_exit missing duration_ms")
	}
}

func TestSpan_Error(t *testing.T) {
	path := filepath.Join(t.TempDir(), "observe.jsonl")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer backend.Close()

	span := Start(backend, "s1", "pre_tool:Write")
	span.Error("setup", "permission denied")
	span.End()

	events := readEvents(t, path)
	if events[1]["error_type"] != "setup" || events[1]["error_message"] != "permission denied" {
		t.Errorf("error event = %v", events[1])
	}
}
