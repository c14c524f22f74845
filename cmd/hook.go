package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hookline/internal/hooks"
	"hookline/internal/observe"
)

var (
	hookLogDir     string
	hookEventsFile string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Process one hook event from stdin: log it and emit telemetry",
	Long: `Reads a single hook event from stdin, appends it to the per-session
log under --log-dir, and records enter/exit telemetry. Wire it into
Claude Code hook settings to get greppable JSONL logs of everything the
agent does. Always allows; the command never blocks a tool call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading hook input: %w", err)
		}
		if len(data) == 0 {
			return nil
		}

		event, err := hooks.ParseEvent(data)
		if err != nil {
			return err
		}

		var backend observe.Backend = observe.NopBackend{}
		if hookEventsFile != "" {
			fb, err := observe.NewFileBackend(hookEventsFile)
			if err != nil {
				return err
			}
			defer fb.Close()
			backend = fb
		}

		span := observe.Start(backend, event.SessionID, hookName(event))
		defer span.End()

		logger, err := hooks.NewEventLogger(hookLogDir)
		if err != nil {
			span.Error("setup", err.Error())
			return err
		}
		if err := logger.LogEvent(event); err != nil {
			span.Error("write", err.Error())
			return err
		}
		return nil
	},
}

func hookName(event *hooks.Event) string {
	if event.ToolName != "" {
		return fmt.Sprintf("%s:%s", event.HookEventName, event.ToolName)
	}
	return event.HookEventName
}

func defaultHookLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "hook-logs"
	}
	return filepath.Join(home, ".claude", "hook-logs")
}

func init() {
	hookCmd.Flags().StringVar(&hookLogDir, "log-dir", defaultHookLogDir(), "Directory for per-session hook logs")
	hookCmd.Flags().StringVar(&hookEventsFile, "events", "", "Optional JSONL file for enter/exit telemetry")
	rootCmd.AddCommand(hookCmd)
}
