package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hookline/internal/store"
)

var exportDBPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the transcript into a SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := OpenTranscript()
		if err != nil {
			return err
		}

		db, err := store.Open(exportDBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Export(t); err != nil {
			return fmt.Errorf("exporting transcript: %w", err)
		}

		stats := t.Stats()
		fmt.Printf("Exported %d entries (%d tool calls) to %s\n",
			stats.Live+stats.Archived, stats.ToolUses, exportDBPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDBPath, "db", "transcript.db", "Path to the SQLite database to write")
	rootCmd.AddCommand(exportCmd)
}
