package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hookline/internal/transcript"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Render the conversation turn by turn",
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := OpenTranscript()
		if err != nil {
			return err
		}

		turns := t.Turns()
		users := t.UserEntries()

		// Interleave by file position so prompts appear before the
		// responses they caused.
		ui := 0
		for _, turn := range turns {
			turnLine := turnStartLine(turn)
			for ui < len(users) && users[ui].Line() < turnLine {
				printUser(users[ui])
				ui++
			}
			printTurn(turn)
		}
		for ; ui < len(users); ui++ {
			printUser(users[ui])
		}
		return nil
	},
}

func turnStartLine(turn *transcript.Turn) int {
	if len(turn.Entries) == 0 {
		return 0
	}
	return turn.Entries[0].Line()
}

func printUser(u *transcript.UserEntry) {
	if u.IsToolResult() {
		return
	}
	text := strings.TrimSpace(u.Text())
	if text == "" {
		return
	}
	fmt.Printf("── user ──\n%s\n\n", text)
}

func printTurn(turn *transcript.Turn) {
	status := ""
	if !turn.IsComplete() {
		status = " [incomplete]"
	}
	fmt.Printf("── assistant (%s)%s ──\n", turn.RequestID, status)

	if thinking := strings.TrimSpace(turn.Thinking()); thinking != "" {
		fmt.Printf("[thinking: %d chars]\n", len(thinking))
	}
	if text := strings.TrimSpace(turn.Text()); text != "" {
		fmt.Println(text)
	}
	for _, use := range turn.ToolUses() {
		fmt.Printf("  -> %s (%s)\n", use.Name, use.ID)
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(showCmd)
}
