// Package observe emits structured events about hook execution to a
// pluggable backend, correlating enter/exit/decision records per request.
package observe

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies an observability event.
type EventType string

const (
	HookEnter EventType = "hook_enter"
	HookExit  EventType = "hook_exit"
	Decision  EventType = "decision"
	Error     EventType = "error"
	Custom    EventType = "custom"
)

// Event is one observability record. RequestID correlates the records of
// a single hook invocation.
type Event struct {
	SessionID string    `json:"session_id"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"event_type"`

	// StrategyName identifies the handler bundle, HookName the specific
	// registration (for example "pre_tool:Bash").
	StrategyName string `json:"strategy_name,omitempty"`
	HookName     string `json:"hook_name"`

	// DurationMs is set on hook_exit.
	DurationMs float64 `json:"duration_ms,omitempty"`

	// Decision fields.
	Decision string `json:"decision,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// Error fields.
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	// CustomType names the event when Type is custom.
	CustomType string `json:"custom_event_type,omitempty"`

	Payload map[string]any `json:"payload,omitempty"`
}

// NewEvent returns an event of the given type with a fresh request id and
// the current time.
func NewEvent(typ EventType, sessionID, hookName string) Event {
	return Event{
		SessionID: sessionID,
		RequestID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      typ,
		HookName:  hookName,
	}
}

// Backend receives events. Emit must be safe for concurrent use.
type Backend interface {
	Emit(Event) error
	Close() error
}

// Span tracks one hook invocation from enter to exit under a shared
// request id.
type Span struct {
	backend Backend
	event   Event
	started time.Time
}

// Start emits a hook_enter event and returns a span for the matching exit.
func Start(backend Backend, sessionID, hookName string) *Span {
	enter := NewEvent(HookEnter, sessionID, hookName)
	_ = backend.Emit(enter)
	return &Span{backend: backend, event: enter, started: enter.Timestamp}
}

// Decision emits a decision event under the span's request id.
func (s *Span) Decision(decision, reason string) {
	event := s.child(Decision)
	event.Decision = decision
	event.Reason = reason
	_ = s.backend.Emit(event)
}

// Error emits an error event under the span's request id.
func (s *Span) Error(errType, message string) {
	event := s.child(Error)
	event.ErrorType = errType
	event.ErrorMessage = message
	_ = s.backend.Emit(event)
}

// End emits the hook_exit event with the elapsed duration.
func (s *Span) End() {
	event := s.child(HookExit)
	event.DurationMs = float64(time.Since(s.started)) / float64(time.Millisecond)
	_ = s.backend.Emit(event)
}

func (s *Span) child(typ EventType) Event {
	return Event{
		SessionID:    s.event.SessionID,
		RequestID:    s.event.RequestID,
		Timestamp:    time.Now().UTC(),
		Type:         typ,
		StrategyName: s.event.StrategyName,
		HookName:     s.event.HookName,
	}
}
