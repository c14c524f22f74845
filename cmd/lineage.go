package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hookline/internal/transcript"
)

var lineageCmd = &cobra.Command{
	Use:   "lineage <uuid>",
	Short: "Walk an entry's causal ancestry across compaction cuts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := OpenTranscript()
		if err != nil {
			return err
		}

		entry := t.FindByUUID(args[0])
		if entry == nil {
			return fmt.Errorf("entry not found: %s", args[0])
		}

		seen := make(map[string]bool)
		for entry != nil {
			printLineage(t, entry)
			id := entryUUID(entry)
			if id != "" {
				if seen[id] {
					fmt.Println("  (cycle detected, stopping)")
					break
				}
				seen[id] = true
			}
			entry = t.LogicalParent(entry)
		}
		return nil
	},
}

func entryUUID(entry transcript.Entry) string {
	if b, ok := entry.(interface{ Base() *transcript.EntryBase }); ok {
		return b.Base().UUID
	}
	return ""
}

func printLineage(t *transcript.Transcript, entry transcript.Entry) {
	kind := entry.EntryType()
	if boundary, ok := entry.(*transcript.CompactBoundary); ok {
		kind = fmt.Sprintf("system/%s", boundary.Subtype)
	}

	summary := ""
	switch e := entry.(type) {
	case *transcript.UserEntry:
		summary = firstLine(e.Text())
	case *transcript.AssistantEntry:
		summary = firstLine(e.Text())
	case *transcript.SystemEntry:
		summary = firstLine(e.Content)
	}

	fmt.Printf("%5d  %-22s %-38s %s\n", entry.Line(), kind, entryUUID(entry), truncate(summary, 60))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func init() {
	rootCmd.AddCommand(lineageCmd)
}
