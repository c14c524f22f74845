package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	toolsErrors bool
	toolsJSON   bool
)

type toolCallReport struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Input   map[string]any `json:"input,omitempty"`
	Result  string         `json:"result,omitempty"`
	IsError bool           `json:"is_error,omitempty"`
	Pending bool           `json:"pending,omitempty"`
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List tool invocations joined to their results",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := OpenTranscript()
		if err != nil {
			return err
		}

		var reports []toolCallReport
		for _, use := range t.ToolUses() {
			report := toolCallReport{ID: use.ID, Name: use.Name, Input: use.Input}
			if result := t.FindToolResult(use.ID); result != nil {
				report.Result = result.Text()
				report.IsError = result.IsError
			} else {
				report.Pending = true
			}
			if toolsErrors && !report.IsError {
				continue
			}
			reports = append(reports, report)
		}

		if toolsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(reports)
		}

		for _, r := range reports {
			status := "ok"
			switch {
			case r.Pending:
				status = "pending"
			case r.IsError:
				status = "error"
			}
			fmt.Printf("%-10s %-12s %s\n", status, r.Name, r.ID)
			if r.Result != "" {
				fmt.Printf("  %s\n", truncate(r.Result, 200))
			}
		}
		return nil
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsErrors, "errors", false, "Only show failed tool calls")
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(toolsCmd)
}
