package hooks

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Handler inspects an event and returns a decision. Returning nil (or
// Allow()) passes the event to the next handler.
type Handler func(*Event) *Response

// App routes hook events to registered handlers. Register handlers up
// front, then call Run once per hook invocation.
type App struct {
	Logger zerolog.Logger

	preTool  map[string][]Handler
	postTool map[string][]Handler
	on       map[string][]Handler
}

// NewApp returns an App with no handlers and a no-op logger.
func NewApp() *App {
	return &App{
		Logger:   zerolog.Nop(),
		preTool:  make(map[string][]Handler),
		postTool: make(map[string][]Handler),
		on:       make(map[string][]Handler),
	}
}

// catchAll is the registration key for handlers matching every tool.
const catchAll = "*"

// PreTool registers a handler for PreToolUse events on the named tools.
// With no tool names the handler matches every tool, running after any
// tool-specific handlers.
func (a *App) PreTool(handler Handler, tools ...string) {
	registerTools(a.preTool, handler, tools)
}

// PostTool registers a handler for PostToolUse events on the named tools.
func (a *App) PostTool(handler Handler, tools ...string) {
	registerTools(a.postTool, handler, tools)
}

// On registers a handler for a lifecycle event such as Stop,
// UserPromptSubmit, or SessionStart.
func (a *App) On(eventName string, handler Handler) {
	a.on[eventName] = append(a.on[eventName], handler)
}

func registerTools(m map[string][]Handler, handler Handler, tools []string) {
	if len(tools) == 0 {
		m[catchAll] = append(m[catchAll], handler)
		return
	}
	for _, tool := range tools {
		m[tool] = append(m[tool], handler)
	}
}

// Run reads one event from stdin, dispatches it, and writes the first
// deny or block response to stdout. Empty input and allow decisions both
// produce no output.
func (a *App) Run(stdin io.Reader, stdout io.Writer) error {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("reading hook input: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	event, err := ParseEvent(data)
	if err != nil {
		return err
	}

	response := a.dispatch(event)
	if !response.Blocks() {
		return nil
	}
	if err := json.NewEncoder(stdout).Encode(response); err != nil {
		return fmt.Errorf("writing hook response: %w", err)
	}
	return nil
}

func (a *App) dispatch(event *Event) *Response {
	switch event.HookEventName {
	case "PreToolUse":
		return a.runHandlers(toolHandlers(a.preTool, event.ToolName), event)
	case "PostToolUse":
		return a.runHandlers(toolHandlers(a.postTool, event.ToolName), event)
	default:
		return a.runHandlers(a.on[event.HookEventName], event)
	}
}

// toolHandlers selects the chain for a tool: specific handlers first,
// catch-all after.
func toolHandlers(m map[string][]Handler, tool string) []Handler {
	handlers := append([]Handler(nil), m[tool]...)
	return append(handlers, m[catchAll]...)
}

// runHandlers runs the chain in registration order and returns the first
// deny or block. A panicking handler is logged and skipped; a broken hook
// must not lock the agent out of its tools.
func (a *App) runHandlers(handlers []Handler, event *Event) (response *Response) {
	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					a.Logger.Error().
						Str("event", event.HookEventName).
						Str("tool", event.ToolName).
						Interface("panic", r).
						Msg("hook handler panicked")
				}
			}()
			response = handler(event)
		}()
		if response.Blocks() {
			return response
		}
	}
	return nil
}
