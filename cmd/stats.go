package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize a transcript: entry counts, turns, tools, tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := OpenTranscript()
		if err != nil {
			return err
		}

		stats := t.Stats()

		if statsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Printf("Transcript: %s\n\n", t.Path)
		fmt.Printf("Entries:     %d live, %d archived\n", stats.Live, stats.Archived)
		fmt.Printf("  user:      %d\n", stats.Users)
		fmt.Printf("  assistant: %d\n", stats.Assistants)
		fmt.Printf("  system:    %d\n", stats.Systems)
		fmt.Printf("  snapshots: %d\n", stats.Snapshots)
		fmt.Printf("Compactions: %d\n", stats.Compactions)
		fmt.Printf("Turns:       %d\n", stats.Turns)
		fmt.Printf("Tool calls:  %d (%d results, %d errors)\n", stats.ToolUses, stats.ToolResults, stats.ToolErrors)
		fmt.Printf("Tokens:      %d in, %d out (cache: %d created, %d read)\n",
			stats.TokensIn, stats.TokensOut, stats.CacheCreation, stats.CacheRead)
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statsCmd)
}
