package transcript

// Stats summarizes a loaded transcript.
type Stats struct {
	Live          int
	Archived      int
	Users         int
	Assistants    int
	Systems       int
	Snapshots     int
	ToolUses      int
	ToolResults   int
	ToolErrors    int
	Turns         int
	Compactions   int
	TokensIn      int64
	TokensOut     int64
	CacheCreation int64
	CacheRead     int64
}

// Stats counts entries, tool activity, and token usage across the whole
// log, archived included.
func (t *Transcript) Stats() Stats {
	s := Stats{
		Live:        len(t.entries),
		Archived:    len(t.archived),
		Compactions: len(t.CompactBoundaries()),
	}
	for _, entry := range t.source(true) {
		switch e := entry.(type) {
		case *UserEntry:
			s.Users++
		case *AssistantEntry:
			s.Assistants++
			if e.Message != nil && e.Message.Usage != nil {
				s.TokensIn += e.Message.Usage.InputTokens
				s.TokensOut += e.Message.Usage.OutputTokens
				s.CacheCreation += e.Message.Usage.CacheCreationInputTokens
				s.CacheRead += e.Message.Usage.CacheReadInputTokens
			}
		case *SystemEntry, *CompactBoundary, *StopHookSummary:
			s.Systems++
		case *FileHistorySnapshot:
			s.Snapshots++
		}
	}
	s.ToolUses = len(t.toolUses)
	s.ToolResults = len(t.toolResults)
	for _, r := range t.toolResultOrder {
		if r.IsError {
			s.ToolErrors++
		}
	}
	s.Turns = len(t.Turns(WithArchived(true), WithMeta(true)))
	return s
}
