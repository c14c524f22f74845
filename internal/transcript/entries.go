package transcript

import (
	"encoding/json"
	"time"
)

// Entry is one decoded transcript record. The concrete types are UserEntry,
// AssistantEntry, SystemEntry (plus its named subtypes CompactBoundary and
// StopHookSummary), FileHistorySnapshot, and GenericEntry for records whose
// type tag is not recognized.
type Entry interface {
	// EntryType returns the wire discriminator ("user", "assistant", ...).
	EntryType() string

	// Line returns the 1-based line number the entry was decoded from,
	// or 0 for entries not produced by a load.
	Line() int

	setLine(n int)
}

// EntryBase holds the identity fields shared by every conversational entry.
// FileHistorySnapshot is the one record kind that does not carry them.
type EntryBase struct {
	Type        string `json:"type"`
	UUID        string `json:"uuid"`
	ParentUUID  string `json:"parentUuid,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	SessionID   string `json:"sessionId"`
	CWD         string `json:"cwd"`
	Version     string `json:"version"`
	GitBranch   string `json:"gitBranch"`
	IsSidechain bool   `json:"isSidechain"`
	UserType    string `json:"userType"`
	Slug        string `json:"slug,omitempty"`
	IsSynthetic bool   `json:"isSynthetic"`

	// Extra holds wire fields outside the known schema, merged back on encode.
	Extra map[string]json.RawMessage `json:"-"`

	line int
}

func (e *EntryBase) EntryType() string { return e.Type }
func (e *EntryBase) Line() int         { return e.line }
func (e *EntryBase) setLine(n int)     { e.line = n }

// Base exposes the shared identity fields. The index and resolver use it to
// treat all conversational entry types uniformly.
func (e *EntryBase) Base() *EntryBase { return e }

// Time parses the entry timestamp. The wire carries RFC 3339 with optional
// fractional seconds.
func (e *EntryBase) Time() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Timestamp)
}

// hasBase matches every entry type that embeds EntryBase.
type hasBase interface {
	Base() *EntryBase
}

// GenericEntry preserves a record with an unrecognized type tag. Known base
// fields are decoded normally; everything else stays in Extra.
type GenericEntry struct {
	EntryBase
}

func (e *GenericEntry) UnmarshalJSON(data []byte) error {
	type alias GenericEntry
	extra, err := decodeKnown(data, (*alias)(e))
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

func (e *GenericEntry) MarshalJSON() ([]byte, error) {
	type alias GenericEntry
	return mergeExtra((*alias)(e), e.Extra)
}

// UserMessage is the nested message object of a user entry. Content on the
// wire is either a plain string (free text) or a list of content blocks;
// Blocks is nil for the free-text form.
type UserMessage struct {
	Role   string
	Text   string
	Blocks []Block

	Extra map[string]json.RawMessage
}

func (m *UserMessage) UnmarshalJSON(data []byte) error {
	return m.decode(data, nil)
}

func (m *UserMessage) decode(data []byte, toolUseResult json.RawMessage) error {
	var probe struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content,omitempty"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	extra, err := splitExtra(data, &probe)
	if err != nil {
		return err
	}
	m.Role = probe.Role
	m.Text = ""
	m.Blocks = nil
	m.Extra = extra
	if len(probe.Content) == 0 {
		return nil
	}
	var text string
	if err := json.Unmarshal(probe.Content, &text); err == nil {
		m.Text = text
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(probe.Content, &items); err == nil {
		blocks, err := parseContentBlocks(items, toolUseResult)
		if err != nil {
			return err
		}
		m.Blocks = blocks
	}
	return nil
}

func (m *UserMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+2)
	for key, value := range m.Extra {
		out[key] = value
	}
	role, err := json.Marshal(m.Role)
	if err != nil {
		return nil, err
	}
	out["role"] = role
	var content []byte
	if m.Blocks != nil {
		content, err = json.Marshal(m.Blocks)
	} else {
		content, err = json.Marshal(m.Text)
	}
	if err != nil {
		return nil, err
	}
	out["content"] = content
	return json.Marshal(out)
}

// UserEntry is input to the model: free text from the user, or the tool
// results the harness feeds back after a tool invocation.
type UserEntry struct {
	EntryBase
	Message                   *UserMessage    `json:"message,omitempty"`
	ThinkingMetadata          json.RawMessage `json:"thinkingMetadata,omitempty"`
	Todos                     json.RawMessage `json:"todos,omitempty"`
	ToolUseResult             json.RawMessage `json:"toolUseResult,omitempty"`
	IsMeta                    bool            `json:"isMeta"`
	IsCompactSummary          bool            `json:"isCompactSummary"`
	IsVisibleInTranscriptOnly bool            `json:"isVisibleInTranscriptOnly"`
}

func (e *UserEntry) UnmarshalJSON(data []byte) error {
	var wire struct {
		EntryBase
		Message                   json.RawMessage `json:"message,omitempty"`
		ThinkingMetadata          json.RawMessage `json:"thinkingMetadata,omitempty"`
		Todos                     json.RawMessage `json:"todos,omitempty"`
		ToolUseResult             json.RawMessage `json:"toolUseResult,omitempty"`
		IsMeta                    bool            `json:"isMeta"`
		IsCompactSummary          bool            `json:"isCompactSummary"`
		IsVisibleInTranscriptOnly bool            `json:"isVisibleInTranscriptOnly"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	extra, err := splitExtra(data, &wire)
	if err != nil {
		return err
	}
	e.EntryBase = wire.EntryBase
	e.ThinkingMetadata = wire.ThinkingMetadata
	e.Todos = wire.Todos
	e.ToolUseResult = wire.ToolUseResult
	e.IsMeta = wire.IsMeta
	e.IsCompactSummary = wire.IsCompactSummary
	e.IsVisibleInTranscriptOnly = wire.IsVisibleInTranscriptOnly
	e.Extra = extra
	e.Message = nil
	if len(wire.Message) > 0 {
		var message UserMessage
		// The structured tool result travels on the entry, not the
		// block, so it is attached to tool_result blocks here.
		if err := message.decode(wire.Message, wire.ToolUseResult); err != nil {
			return err
		}
		e.Message = &message
	}
	return nil
}

func (e *UserEntry) MarshalJSON() ([]byte, error) {
	type alias UserEntry
	return mergeExtra((*alias)(e), e.Extra)
}

// Text returns the free-text content, or "" for the tool-result form.
func (e *UserEntry) Text() string {
	if e.Message == nil || e.Message.Blocks != nil {
		return ""
	}
	return e.Message.Text
}

// IsToolResult reports whether content is the structured tool-result form.
func (e *UserEntry) IsToolResult() bool {
	return e.Message != nil && e.Message.Blocks != nil
}

// ToolResults returns the tool result blocks in content, in wire order.
func (e *UserEntry) ToolResults() []*ToolResultBlock {
	if e.Message == nil {
		return nil
	}
	var results []*ToolResultBlock
	for _, block := range e.Message.Blocks {
		if result, ok := block.(*ToolResultBlock); ok {
			results = append(results, result)
		}
	}
	return results
}

// Usage is the token accounting attached to an assistant message.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

func (u *Usage) UnmarshalJSON(data []byte) error {
	type alias Usage
	extra, err := decodeKnown(data, (*alias)(u))
	if err != nil {
		return err
	}
	u.Extra = extra
	return nil
}

func (u *Usage) MarshalJSON() ([]byte, error) {
	type alias Usage
	return mergeExtra((*alias)(u), u.Extra)
}

// AssistantMessage is the nested message object of an assistant entry.
// Field names inside it follow the API convention (snake_case), unlike the
// camelCase envelope.
type AssistantMessage struct {
	ID         string
	Model      string
	Content    []Block
	StopReason string
	Usage      *Usage

	Extra map[string]json.RawMessage
}

func (m *AssistantMessage) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID         string            `json:"id"`
		Model      string            `json:"model"`
		Content    []json.RawMessage `json:"content,omitempty"`
		StopReason *string           `json:"stop_reason,omitempty"`
		Usage      *Usage            `json:"usage,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	extra, err := splitExtra(data, &wire)
	if err != nil {
		return err
	}
	m.ID = wire.ID
	m.Model = wire.Model
	m.Content = nil
	if wire.Content != nil {
		blocks, err := parseContentBlocks(wire.Content, nil)
		if err != nil {
			return err
		}
		m.Content = blocks
	}
	m.StopReason = ""
	if wire.StopReason != nil {
		m.StopReason = *wire.StopReason
	}
	m.Usage = wire.Usage
	m.Extra = extra
	return nil
}

func (m *AssistantMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+5)
	for key, value := range m.Extra {
		out[key] = value
	}
	set := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}
	if err := set("id", m.ID); err != nil {
		return nil, err
	}
	if err := set("model", m.Model); err != nil {
		return nil, err
	}
	if m.Content != nil {
		if err := set("content", m.Content); err != nil {
			return nil, err
		}
	}
	if m.StopReason != "" {
		if err := set("stop_reason", m.StopReason); err != nil {
			return nil, err
		}
	}
	if m.Usage != nil {
		if err := set("usage", m.Usage); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// AssistantEntry is one model response record. A single logical turn may span
// several assistant entries sharing one RequestID.
type AssistantEntry struct {
	EntryBase
	RequestID string            `json:"requestId,omitempty"`
	Message   *AssistantMessage `json:"message,omitempty"`
}

func (e *AssistantEntry) UnmarshalJSON(data []byte) error {
	type alias AssistantEntry
	extra, err := decodeKnown(data, (*alias)(e))
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

func (e *AssistantEntry) MarshalJSON() ([]byte, error) {
	type alias AssistantEntry
	return mergeExtra((*alias)(e), e.Extra)
}

// Content returns the message content blocks, nil when there is no message.
func (e *AssistantEntry) Content() []Block {
	if e.Message == nil {
		return nil
	}
	return e.Message.Content
}

// Text returns the concatenated text blocks of the response.
func (e *AssistantEntry) Text() string {
	return joinBlockText(e.Content(), func(b Block) (string, bool) {
		if text, ok := b.(*TextBlock); ok {
			return text.Text, true
		}
		return "", false
	})
}

// Thinking returns the concatenated reasoning blocks of the response.
func (e *AssistantEntry) Thinking() string {
	return joinBlockText(e.Content(), func(b Block) (string, bool) {
		if thinking, ok := b.(*ThinkingBlock); ok {
			return thinking.Thinking, true
		}
		return "", false
	})
}

// ToolUses returns the tool invocation blocks, in wire order.
func (e *AssistantEntry) ToolUses() []*ToolUseBlock {
	var uses []*ToolUseBlock
	for _, block := range e.Content() {
		if use, ok := block.(*ToolUseBlock); ok {
			uses = append(uses, use)
		}
	}
	return uses
}

// HasToolUse reports whether the response invokes any tool.
func (e *AssistantEntry) HasToolUse() bool {
	for _, block := range e.Content() {
		if _, ok := block.(*ToolUseBlock); ok {
			return true
		}
	}
	return false
}

// StopReason returns the message stop reason, "" when not yet stopped.
func (e *AssistantEntry) StopReason() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.StopReason
}

// SystemEntry is a system event or metadata record.
type SystemEntry struct {
	EntryBase
	Subtype string `json:"subtype,omitempty"`
	Content string `json:"content,omitempty"`
	Level   string `json:"level,omitempty"`
}

func (e *SystemEntry) UnmarshalJSON(data []byte) error {
	type alias SystemEntry
	extra, err := decodeKnown(data, (*alias)(e))
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

func (e *SystemEntry) MarshalJSON() ([]byte, error) {
	type alias SystemEntry
	return mergeExtra((*alias)(e), e.Extra)
}

// CompactBoundary marks where history compaction occurred. Entries at or
// before it (by line position) are archived. Its LogicalParentUUID names the
// causal predecessor across the cut, independent of the structural
// ParentUUID; lineage walks must prefer it.
type CompactBoundary struct {
	SystemEntry
	LogicalParentUUID string          `json:"logicalParentUuid,omitempty"`
	CompactMetadata   json.RawMessage `json:"compactMetadata,omitempty"`
}

// compactBoundaryWire is flat (EntryBase, not SystemEntry) so that encoding
// it does not go through SystemEntry's own MarshalJSON.
type compactBoundaryWire struct {
	EntryBase
	Subtype           string          `json:"subtype,omitempty"`
	Content           string          `json:"content,omitempty"`
	Level             string          `json:"level,omitempty"`
	LogicalParentUUID string          `json:"logicalParentUuid,omitempty"`
	CompactMetadata   json.RawMessage `json:"compactMetadata,omitempty"`
}

func (e *CompactBoundary) UnmarshalJSON(data []byte) error {
	var wire compactBoundaryWire
	extra, err := decodeKnown(data, &wire)
	if err != nil {
		return err
	}
	e.SystemEntry = SystemEntry{
		EntryBase: wire.EntryBase,
		Subtype:   wire.Subtype,
		Content:   wire.Content,
		Level:     wire.Level,
	}
	e.LogicalParentUUID = wire.LogicalParentUUID
	e.CompactMetadata = wire.CompactMetadata
	e.Extra = extra
	return nil
}

func (e *CompactBoundary) MarshalJSON() ([]byte, error) {
	wire := compactBoundaryWire{
		EntryBase:         e.EntryBase,
		Subtype:           e.Subtype,
		Content:           e.Content,
		Level:             e.Level,
		LogicalParentUUID: e.LogicalParentUUID,
		CompactMetadata:   e.CompactMetadata,
	}
	return mergeExtra(&wire, e.Extra)
}

// StopHookSummary reports hook execution counters at a stop event.
type StopHookSummary struct {
	SystemEntry
	HookCount             int             `json:"hookCount"`
	HookInfos             json.RawMessage `json:"hookInfos,omitempty"`
	HookErrors            json.RawMessage `json:"hookErrors,omitempty"`
	PreventedContinuation bool            `json:"preventedContinuation"`
	StopReason            string          `json:"stopReason,omitempty"`
	HasOutput             bool            `json:"hasOutput"`
	ToolUseID             string          `json:"toolUseID,omitempty"`
}

type stopHookSummaryWire struct {
	EntryBase
	Subtype               string          `json:"subtype,omitempty"`
	Content               string          `json:"content,omitempty"`
	Level                 string          `json:"level,omitempty"`
	HookCount             int             `json:"hookCount"`
	HookInfos             json.RawMessage `json:"hookInfos,omitempty"`
	HookErrors            json.RawMessage `json:"hookErrors,omitempty"`
	PreventedContinuation bool            `json:"preventedContinuation"`
	StopReason            string          `json:"stopReason,omitempty"`
	HasOutput             bool            `json:"hasOutput"`
	ToolUseID             string          `json:"toolUseID,omitempty"`
}

func (e *StopHookSummary) UnmarshalJSON(data []byte) error {
	var wire stopHookSummaryWire
	extra, err := decodeKnown(data, &wire)
	if err != nil {
		return err
	}
	e.SystemEntry = SystemEntry{
		EntryBase: wire.EntryBase,
		Subtype:   wire.Subtype,
		Content:   wire.Content,
		Level:     wire.Level,
	}
	e.HookCount = wire.HookCount
	e.HookInfos = wire.HookInfos
	e.HookErrors = wire.HookErrors
	e.PreventedContinuation = wire.PreventedContinuation
	e.StopReason = wire.StopReason
	e.HasOutput = wire.HasOutput
	e.ToolUseID = wire.ToolUseID
	e.Extra = extra
	return nil
}

func (e *StopHookSummary) MarshalJSON() ([]byte, error) {
	wire := stopHookSummaryWire{
		EntryBase:             e.EntryBase,
		Subtype:               e.Subtype,
		Content:               e.Content,
		Level:                 e.Level,
		HookCount:             e.HookCount,
		HookInfos:             e.HookInfos,
		HookErrors:            e.HookErrors,
		PreventedContinuation: e.PreventedContinuation,
		StopReason:            e.StopReason,
		HasOutput:             e.HasOutput,
		ToolUseID:             e.ToolUseID,
	}
	return mergeExtra(&wire, e.Extra)
}

// FileHistorySnapshot tracks file backups for undo. It is keyed by the
// message that triggered the backup, carries no uuid or parent pointer, and
// is excluded from conversational entry counts.
type FileHistorySnapshot struct {
	Type             string          `json:"type"`
	MessageID        string          `json:"messageId"`
	Snapshot         json.RawMessage `json:"snapshot,omitempty"`
	IsSnapshotUpdate bool            `json:"isSnapshotUpdate"`

	Extra map[string]json.RawMessage `json:"-"`

	line int
}

func (e *FileHistorySnapshot) EntryType() string { return e.Type }
func (e *FileHistorySnapshot) Line() int         { return e.line }
func (e *FileHistorySnapshot) setLine(n int)     { e.line = n }

func (e *FileHistorySnapshot) UnmarshalJSON(data []byte) error {
	type alias FileHistorySnapshot
	extra, err := decodeKnown(data, (*alias)(e))
	if err != nil {
		return err
	}
	e.Extra = extra
	return nil
}

func (e *FileHistorySnapshot) MarshalJSON() ([]byte, error) {
	type alias FileHistorySnapshot
	return mergeExtra((*alias)(e), e.Extra)
}

// ParseEntry decodes one transcript line, dispatching on the type field and,
// for system records, the subtype. Unrecognized type tags fall back to
// GenericEntry with all fields preserved.
func ParseEntry(raw []byte) (Entry, error) {
	var probe struct {
		Type    string `json:"type"`
		Subtype string `json:"subtype"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	var entry Entry
	switch probe.Type {
	case "user":
		entry = &UserEntry{}
	case "assistant":
		entry = &AssistantEntry{}
	case "system":
		switch probe.Subtype {
		case "compact_boundary":
			entry = &CompactBoundary{}
		case "stop_hook_summary":
			entry = &StopHookSummary{}
		default:
			entry = &SystemEntry{}
		}
	case "file-history-snapshot":
		entry = &FileHistorySnapshot{}
	default:
		entry = &GenericEntry{}
	}
	if err := json.Unmarshal(raw, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EncodeEntry serializes an entry back to its wire form, reproducing the
// wire naming convention and omitting internal bookkeeping (line numbers).
// For schema-conformant input it is a left inverse of ParseEntry.
func EncodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

func joinBlockText(blocks []Block, pick func(Block) (string, bool)) string {
	var out string
	for _, block := range blocks {
		text, ok := pick(block)
		if !ok {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += text
	}
	return out
}
