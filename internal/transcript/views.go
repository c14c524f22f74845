package transcript

// ViewOption overrides a transcript's default filters for a single view
// call.
type ViewOption func(*viewConfig)

type viewConfig struct {
	archived bool
	meta     bool
}

// WithArchived includes (or excludes) entries from before the last compact
// boundary.
func WithArchived(include bool) ViewOption {
	return func(c *viewConfig) { c.archived = include }
}

// WithMeta includes (or excludes) meta and transcript-only user entries.
func WithMeta(include bool) ViewOption {
	return func(c *viewConfig) { c.meta = include }
}

func (t *Transcript) view(opts []ViewOption) viewConfig {
	cfg := viewConfig{archived: t.IncludeArchived, meta: t.IncludeMeta}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// source selects the entry population for a view. With archived the result
// is archived followed by live, which is exactly file order.
func (t *Transcript) source(archived bool) []Entry {
	if !archived {
		return t.entries
	}
	combined := make([]Entry, 0, len(t.archived)+len(t.entries))
	combined = append(combined, t.archived...)
	combined = append(combined, t.entries...)
	return combined
}

// UserEntries returns user entries in file order. Unless meta entries are
// included, entries marked meta or visible only in the transcript UI are
// dropped; these carry injected context rather than anything the user
// typed.
func (t *Transcript) UserEntries(opts ...ViewOption) []*UserEntry {
	cfg := t.view(opts)
	var out []*UserEntry
	for _, entry := range t.source(cfg.archived) {
		u, ok := entry.(*UserEntry)
		if !ok {
			continue
		}
		if !cfg.meta && (u.IsMeta || u.IsVisibleInTranscriptOnly) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// AssistantEntries returns assistant entries in file order.
func (t *Transcript) AssistantEntries(opts ...ViewOption) []*AssistantEntry {
	cfg := t.view(opts)
	var out []*AssistantEntry
	for _, entry := range t.source(cfg.archived) {
		if a, ok := entry.(*AssistantEntry); ok {
			out = append(out, a)
		}
	}
	return out
}

// SystemEntries returns system entries in file order, including the typed
// subtypes (compact boundaries and stop hook summaries) as their embedded
// system records.
func (t *Transcript) SystemEntries(opts ...ViewOption) []*SystemEntry {
	cfg := t.view(opts)
	var out []*SystemEntry
	for _, entry := range t.source(cfg.archived) {
		switch e := entry.(type) {
		case *CompactBoundary:
			out = append(out, &e.SystemEntry)
		case *StopHookSummary:
			out = append(out, &e.SystemEntry)
		case *SystemEntry:
			out = append(out, e)
		}
	}
	return out
}

// CompactBoundaries returns every compact boundary in the log, archived and
// live alike, in file order. All but the last are by construction archived.
func (t *Transcript) CompactBoundaries() []*CompactBoundary {
	var out []*CompactBoundary
	for _, entry := range t.source(true) {
		if b, ok := entry.(*CompactBoundary); ok {
			out = append(out, b)
		}
	}
	return out
}

// ToolUses returns every tool invocation block in file order.
func (t *Transcript) ToolUses(opts ...ViewOption) []*ToolUseBlock {
	cfg := t.view(opts)
	if cfg.archived {
		// Copy so callers cannot scribble on the index's backing array.
		return append([]*ToolUseBlock(nil), t.toolUseOrder...)
	}
	var out []*ToolUseBlock
	for _, entry := range t.entries {
		if a, ok := entry.(*AssistantEntry); ok {
			out = append(out, a.ToolUses()...)
		}
	}
	return out
}

// ToolResults returns every tool result block in file order. Meta filtering
// does not apply; tool results ride on synthetic user entries.
func (t *Transcript) ToolResults(opts ...ViewOption) []*ToolResultBlock {
	cfg := t.view(opts)
	if cfg.archived {
		return append([]*ToolResultBlock(nil), t.toolResultOrder...)
	}
	var out []*ToolResultBlock
	for _, entry := range t.entries {
		if u, ok := entry.(*UserEntry); ok {
			out = append(out, u.ToolResults()...)
		}
	}
	return out
}

// Errors returns the tool results flagged as errors, in file order.
func (t *Transcript) Errors(opts ...ViewOption) []*ToolResultBlock {
	var out []*ToolResultBlock
	for _, result := range t.ToolResults(opts...) {
		if result.IsError {
			out = append(out, result)
		}
	}
	return out
}

// FileSnapshots returns file history snapshots in file order.
func (t *Transcript) FileSnapshots(opts ...ViewOption) []*FileHistorySnapshot {
	cfg := t.view(opts)
	var out []*FileHistorySnapshot
	for _, entry := range t.source(cfg.archived) {
		if s, ok := entry.(*FileHistorySnapshot); ok {
			out = append(out, s)
		}
	}
	return out
}

// Turns groups assistant entries into logical turns by request id, ordered
// by each turn's first appearance in the selected population. Assistant
// entries without a request id are not part of any turn.
func (t *Transcript) Turns(opts ...ViewOption) []*Turn {
	cfg := t.view(opts)
	var turns []*Turn
	seen := make(map[string]bool)
	for _, entry := range t.source(cfg.archived) {
		a, ok := entry.(*AssistantEntry)
		if !ok || a.RequestID == "" || seen[a.RequestID] {
			continue
		}
		seen[a.RequestID] = true
		turns = append(turns, &Turn{
			RequestID: a.RequestID,
			Entries:   t.byRequestID[a.RequestID],
		})
	}
	return turns
}
