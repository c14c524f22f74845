package transcript

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
)

// ValidateMode controls what happens to transcript lines that fail to decode.
type ValidateMode string

const (
	// ValidateStrict aborts the load on the first undecodable line.
	ValidateStrict ValidateMode = "strict"
	// ValidateWarn skips undecodable lines and reports them on the logger.
	ValidateWarn ValidateMode = "warn"
	// ValidateNone skips undecodable lines silently.
	ValidateNone ValidateMode = "none"
)

// DecodeError is returned by Load under ValidateStrict when a line fails to
// decode.
type DecodeError struct {
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("transcript line %d: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Transcript is an indexed, queryable view over one session log file.
//
// Configure the exported fields before calling Load; after Load returns the
// transcript is read-only and safe for concurrent readers. Reloading while
// readers are active is not; callers wanting live reload should build a
// fresh Transcript and swap it in.
//
//	t := transcript.New("/path/to/session.jsonl")
//	if err := t.Load(); err != nil { ... }
//	for _, entry := range t.UserEntries() { ... }
type Transcript struct {
	Path string

	// Validate governs undecodable lines, Safety is accepted for
	// compatibility but currently governs nothing.
	Validate ValidateMode
	Safety   ValidateMode

	// Defaults for the filtered views; WithArchived/WithMeta override
	// them per call.
	IncludeArchived bool
	IncludeMeta     bool

	// Logger receives skipped-line reports under ValidateWarn.
	Logger zerolog.Logger

	entries  []Entry // live (after the last compact boundary)
	archived []Entry // at or before the last compact boundary

	byUUID      map[string]Entry
	toolUses    map[string]*ToolUseBlock
	toolResults map[string]*ToolResultBlock
	byRequestID map[string][]*AssistantEntry
	snapshots   map[string]*FileHistorySnapshot

	// File-order views of the tool maps. Map iteration would lose the
	// on-disk ordering the views guarantee.
	toolUseOrder    []*ToolUseBlock
	toolResultOrder []*ToolResultBlock

	loaded bool
}

// New returns an unloaded transcript for path with warn-mode validation and
// a no-op logger.
func New(path string) *Transcript {
	return &Transcript{
		Path:     path,
		Validate: ValidateWarn,
		Safety:   ValidateWarn,
		Logger:   zerolog.Nop(),
	}
}

// Load reads the whole file in a single pass: it decodes each non-empty
// line, splits entries into archived and live at the last compact boundary,
// and builds the lookup indexes. A missing file loads as an empty
// transcript. Load fully rebuilds all state, so a failed strict load leaves
// no partial results behind.
func (t *Transcript) Load() error {
	t.reset()

	file, err := os.Open(t.Path)
	if errors.Is(err, fs.ErrNotExist) {
		// A transcript with no history yet is valid.
		t.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening transcript: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	// Assistant entries can be huge; allow lines well past the default.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var all []Entry
	lastCompact := -1
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		entry, err := ParseEntry(line)
		if err != nil {
			switch t.Validate {
			case ValidateStrict:
				t.reset()
				return &DecodeError{Line: lineNum, Err: err}
			case ValidateWarn:
				t.Logger.Warn().Int("line", lineNum).Err(err).
					Msg("skipping undecodable transcript line")
			}
			continue
		}
		entry.setLine(lineNum)
		if _, ok := entry.(*CompactBoundary); ok {
			lastCompact = len(all)
		}
		all = append(all, entry)
		t.index(entry)
	}
	if err := scanner.Err(); err != nil {
		t.reset()
		return fmt.Errorf("reading transcript: %w", err)
	}

	t.archived = all[:lastCompact+1]
	t.entries = all[lastCompact+1:]
	t.loaded = true
	return nil
}

func (t *Transcript) reset() {
	t.entries = nil
	t.archived = nil
	t.byUUID = make(map[string]Entry)
	t.toolUses = make(map[string]*ToolUseBlock)
	t.toolResults = make(map[string]*ToolResultBlock)
	t.byRequestID = make(map[string][]*AssistantEntry)
	t.snapshots = make(map[string]*FileHistorySnapshot)
	t.toolUseOrder = nil
	t.toolResultOrder = nil
	t.loaded = false
}

// Loaded reports whether Load has completed.
func (t *Transcript) Loaded() bool { return t.loaded }

// Entries returns the live entries (after the last compact boundary) in
// file order.
func (t *Transcript) Entries() []Entry { return t.entries }

// Archived returns the entries at or before the last compact boundary in
// file order.
func (t *Transcript) Archived() []Entry { return t.archived }

// Len returns the number of live entries.
func (t *Transcript) Len() int { return len(t.entries) }

func (t *Transcript) index(entry Entry) {
	if b, ok := entry.(hasBase); ok {
		if id := b.Base().UUID; id != "" {
			t.byUUID[id] = entry
		}
	}

	switch e := entry.(type) {
	case *AssistantEntry:
		for _, use := range e.ToolUses() {
			if _, seen := t.toolUses[use.ID]; !seen {
				t.toolUseOrder = append(t.toolUseOrder, use)
			}
			t.toolUses[use.ID] = use
		}
		if e.RequestID != "" {
			t.byRequestID[e.RequestID] = append(t.byRequestID[e.RequestID], e)
		}
	case *UserEntry:
		for _, result := range e.ToolResults() {
			if _, seen := t.toolResults[result.ToolUseID]; !seen {
				t.toolResultOrder = append(t.toolResultOrder, result)
			}
			t.toolResults[result.ToolUseID] = result
		}
	case *FileHistorySnapshot:
		if e.MessageID != "" {
			t.snapshots[e.MessageID] = e
		}
	}
}

// FindByUUID returns the entry with the given uuid, searching live and
// archived regions alike, or nil when absent.
func (t *Transcript) FindByUUID(uuid string) Entry {
	return t.byUUID[uuid]
}

// FindToolUse returns the tool invocation with the given id, or nil.
func (t *Transcript) FindToolUse(toolUseID string) *ToolUseBlock {
	return t.toolUses[toolUseID]
}

// FindToolResult returns the tool result referencing the given invocation
// id, or nil.
func (t *Transcript) FindToolResult(toolUseID string) *ToolResultBlock {
	return t.toolResults[toolUseID]
}

// FindSnapshot returns the file history snapshot keyed by message id, or nil.
func (t *Transcript) FindSnapshot(messageID string) *FileHistorySnapshot {
	return t.snapshots[messageID]
}

// Parent resolves the entry's structural parent pointer against the full
// uuid index; a live entry's parent may be archived. Returns nil when the
// entry has no parent or the parent is not in the log.
func (t *Transcript) Parent(entry Entry) Entry {
	b, ok := entry.(hasBase)
	if !ok {
		return nil
	}
	parent := b.Base().ParentUUID
	if parent == "" {
		return nil
	}
	return t.byUUID[parent]
}

// LogicalParent resolves the causal predecessor. For a compact boundary
// with a logical parent set, that pointer (not the structural parent) links
// the rewritten history back to its origin; for every other entry it is the
// structural parent. Lineage walks across compaction must use this.
func (t *Transcript) LogicalParent(entry Entry) Entry {
	if boundary, ok := entry.(*CompactBoundary); ok && boundary.LogicalParentUUID != "" {
		return t.byUUID[boundary.LogicalParentUUID]
	}
	return t.Parent(entry)
}

// Children returns the entries whose parent pointer names this entry, in
// file order. This is a linear scan over the selected population: child
// queries are rare, and callers that need many of them can build a reverse
// index from Entries and Archived.
func (t *Transcript) Children(entry Entry, opts ...ViewOption) []Entry {
	b, ok := entry.(hasBase)
	if !ok {
		return nil
	}
	id := b.Base().UUID
	if id == "" {
		return nil
	}
	cfg := t.view(opts)
	var children []Entry
	for _, candidate := range t.source(cfg.archived) {
		cb, ok := candidate.(hasBase)
		if !ok {
			continue
		}
		if cb.Base().ParentUUID == id {
			children = append(children, candidate)
		}
	}
	return children
}

// EntriesByRequestID returns all assistant entries sharing a request id, in
// file order. One request id is one logical turn.
func (t *Transcript) EntriesByRequestID(requestID string) []*AssistantEntry {
	return t.byRequestID[requestID]
}
