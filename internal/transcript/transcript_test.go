package transcript

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// writeTranscript writes lines to a temp .jsonl file and returns its path.
func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func entryLine(typ, uuid, parent string, extra string) string {
	base := fmt.Sprintf(`"type":%q,"uuid":%q,"sessionId":"s1","cwd":"/w","version":"1","gitBranch":"main","isSidechain":false,"userType":"external","isSynthetic":false`, typ, uuid)
	if parent != "" {
		base += fmt.Sprintf(`,"parentUuid":%q`, parent)
	}
	if extra != "" {
		base += "," + extra
	}
	return "{" + base + "}"
}

func userLine(uuid, parent, text string) string {
	return entryLine("user", uuid, parent, fmt.Sprintf(`"message":{"role":"user","content":%q}`, text))
}

func assistantLineWith(uuid, parent, requestID, stopReason string, blocks string) string {
	stop := "null"
	if stopReason != "" {
		stop = fmt.Sprintf("%q", stopReason)
	}
	return entryLine("assistant", uuid, parent, fmt.Sprintf(
		`"requestId":%q,"message":{"id":"msg_%s","model":"m","content":[%s],"stop_reason":%s,"usage":{"input_tokens":10,"output_tokens":5}}`,
		requestID, uuid, blocks, stop))
}

func boundaryLine(uuid, logicalParent string) string {
	return entryLine("system", uuid, "", fmt.Sprintf(
		`"subtype":"compact_boundary","logicalParentUuid":%q,"compactMetadata":{"trigger":"auto"}`, logicalParent))
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "absent.jsonl"))
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tr.Loaded() {
		t.Error("Loaded() = false")
	}
	if tr.Len() != 0 || len(tr.Archived()) != 0 {
		t.Errorf("got %d live, %d archived, want empty", tr.Len(), len(tr.Archived()))
	}
}

func TestLoad_SkipsBlankLines(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "hello"),
		"",
		"   ",
		assistantLineWith("a1", "u1", "req_1", "end_turn", `{"type":"text","text":"hi"}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tr.Len())
	}
	// Line numbers reflect file position, not entry ordinal.
	if got := tr.Entries()[1].Line(); got != 4 {
		t.Errorf("second entry Line() = %d, want 4", got)
	}
}

func TestLoad_ValidateModes(t *testing.T) {
	lines := []string{
		userLine("u1", "", "one"),
		`{not json at all`,
		userLine("u2", "u1", "two"),
	}

	t.Run("warn skips bad line", func(t *testing.T) {
		tr := New(writeTranscript(t, lines...))
		if err := tr.Load(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.Len() != 2 {
			t.Errorf("Len() = %d, want 2", tr.Len())
		}
	})

	t.Run("none skips silently", func(t *testing.T) {
		tr := New(writeTranscript(t, lines...))
		tr.Validate = ValidateNone
		if err := tr.Load(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tr.Len() != 2 {
			t.Errorf("Len() = %d, want 2", tr.Len())
		}
	})

	t.Run("strict fails with line number", func(t *testing.T) {
		tr := New(writeTranscript(t, lines...))
		tr.Validate = ValidateStrict
		err := tr.Load()
		if err == nil {
			t.Fatal("expected error")
		}
		var decodeErr *DecodeError
		if !errors.As(err, &decodeErr) {
			t.Fatalf("got %T, want *DecodeError", err)
		}
		if decodeErr.Line != 2 {
			t.Errorf("Line = %d, want 2", decodeErr.Line)
		}
	})
}

func TestLoad_WarnReportsSkippedLineOnLogger(t *testing.T) {
	lines := []string{
		userLine("u1", "", "one"),
		`{not json at all`,
		userLine("u2", "u1", "two"),
	}

	var buf bytes.Buffer
	tr := New(writeTranscript(t, lines...))
	tr.Logger = zerolog.New(&buf)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"line":2`) {
		t.Errorf("warning missing line number, got %q", out)
	}
	if !strings.Contains(out, "skipping undecodable transcript line") {
		t.Errorf("warning missing message, got %q", out)
	}

	// Under none the same logger stays silent.
	buf.Reset()
	tr = New(writeTranscript(t, lines...))
	tr.Validate = ValidateNone
	tr.Logger = zerolog.New(&buf)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("none mode should not log, got %q", buf.String())
	}
}

func TestLoad_PartitionAtLastBoundary(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "first era"),
		boundaryLine("cb1", "u1"),
		userLine("u2", "cb1", "second era"),
		assistantLineWith("a2", "u2", "req_2", "end_turn", `{"type":"text","text":"ok"}`),
		boundaryLine("cb2", "a2"),
		userLine("u3", "cb2", "third era"),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(tr.Archived()); got != 5 {
		t.Errorf("archived = %d, want 5 (everything through the last boundary)", got)
	}
	if tr.Len() != 1 {
		t.Errorf("live = %d, want 1", tr.Len())
	}
	if boundaries := tr.CompactBoundaries(); len(boundaries) != 2 {
		t.Errorf("CompactBoundaries() = %d, want 2", len(boundaries))
	}
	// The archived parent is still reachable through the full index.
	if tr.FindByUUID("u1") == nil {
		t.Error("archived entry missing from uuid index")
	}
}

func TestToolUseResultJoin(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "list files"),
		assistantLineWith("a1", "u1", "req_1", "tool_use", `{"type":"tool_use","id":"toolu_01","name":"Bash","input":{"command":"ls"}}`),
		entryLine("user", "u2", "a1", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_01","content":"a.go","is_error":false}]}`),
		assistantLineWith("a2", "u2", "req_1", "end_turn", `{"type":"text","text":"one file"}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	use := tr.FindToolUse("toolu_01")
	if use == nil || use.Name != "Bash" {
		t.Fatalf("FindToolUse = %+v", use)
	}
	result := tr.FindToolResult("toolu_01")
	if result == nil || result.Text() != "a.go" {
		t.Fatalf("FindToolResult = %+v", result)
	}
	if tr.FindToolUse("toolu_nope") != nil {
		t.Error("miss should return nil")
	}
}

func TestToolViewsReturnCopies(t *testing.T) {
	path := writeTranscript(t,
		assistantLineWith("a1", "", "req_1", "tool_use", `{"type":"tool_use","id":"t1","name":"Bash","input":{}}`),
		entryLine("user", "u1", "a1", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"out","is_error":false}]}`),
		boundaryLine("cb1", "a1"),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	uses := tr.ToolUses(WithArchived(true))
	if len(uses) != 1 {
		t.Fatalf("ToolUses = %d, want 1", len(uses))
	}
	uses[0] = nil
	if again := tr.ToolUses(WithArchived(true)); again[0] == nil {
		t.Error("mutating the returned slice corrupted the index")
	}

	results := tr.ToolResults(WithArchived(true))
	results[0] = nil
	if again := tr.ToolResults(WithArchived(true)); again[0] == nil {
		t.Error("mutating the returned slice corrupted the index")
	}
}

func TestParentAndLogicalParent(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "before compaction"),
		assistantLineWith("a1", "u1", "req_1", "end_turn", `{"type":"text","text":"ok"}`),
		// Structural parent and logical parent deliberately differ.
		entryLine("system", "cb1", "u1",
			`"subtype":"compact_boundary","logicalParentUuid":"a1","compactMetadata":{"trigger":"auto"}`),
		userLine("u2", "cb1", "after compaction"),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boundary := tr.FindByUUID("cb1")
	if boundary == nil {
		t.Fatal("boundary not indexed")
	}
	parent := tr.Parent(boundary)
	if parent == nil || parent.(*UserEntry).UUID != "u1" {
		t.Fatalf("Parent(boundary) = %v, want u1", parent)
	}
	logical := tr.LogicalParent(boundary)
	if logical == nil {
		t.Fatal("LogicalParent(boundary) = nil")
	}
	if logical.(*AssistantEntry).UUID != "a1" {
		t.Errorf("logical parent = %q, want a1", logical.(*AssistantEntry).UUID)
	}
	if logical == parent {
		t.Error("logical parent must diverge from structural parent here")
	}

	// For ordinary entries the two walks agree.
	u2 := tr.FindByUUID("u2")
	if tr.LogicalParent(u2) != tr.Parent(u2) {
		t.Error("LogicalParent should fall back to Parent for non-boundary entries")
	}
}

func TestChildren(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "root prompt"),
		assistantLineWith("a1", "u1", "req_1", "end_turn", `{"type":"text","text":"first"}`),
		boundaryLine("cb1", "a1"),
		assistantLineWith("a2", "u1", "req_2", "end_turn", `{"type":"text","text":"second"}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u1 := tr.FindByUUID("u1")
	live := tr.Children(u1)
	if len(live) != 1 {
		t.Fatalf("live children = %d, want 1", len(live))
	}
	all := tr.Children(u1, WithArchived(true))
	if len(all) != 2 {
		t.Fatalf("all children = %d, want 2", len(all))
	}
}

func TestViews_MetaFiltering(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "real prompt"),
		entryLine("user", "u2", "u1", `"isMeta":true,"message":{"role":"user","content":"injected context"}`),
		entryLine("user", "u3", "u2", `"isVisibleInTranscriptOnly":true,"message":{"role":"user","content":"ui only"}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tr.UserEntries(); len(got) != 1 {
		t.Errorf("default UserEntries = %d, want 1", len(got))
	}
	if got := tr.UserEntries(WithMeta(true)); len(got) != 3 {
		t.Errorf("WithMeta UserEntries = %d, want 3", len(got))
	}

	// Transcript-level default can flip it too.
	tr.IncludeMeta = true
	if got := tr.UserEntries(); len(got) != 3 {
		t.Errorf("IncludeMeta default UserEntries = %d, want 3", len(got))
	}
	// And the per-call option still overrides the default.
	if got := tr.UserEntries(WithMeta(false)); len(got) != 1 {
		t.Errorf("override UserEntries = %d, want 1", len(got))
	}
}

func TestViews_ArchivedDefaultsAndOverrides(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "old"),
		boundaryLine("cb1", "u1"),
		userLine("u2", "cb1", "new"),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := tr.UserEntries(); len(got) != 1 {
		t.Errorf("live UserEntries = %d, want 1", len(got))
	}
	all := tr.UserEntries(WithArchived(true))
	if len(all) != 2 {
		t.Fatalf("all UserEntries = %d, want 2", len(all))
	}
	// File order: archived before live.
	if all[0].UUID != "u1" || all[1].UUID != "u2" {
		t.Errorf("order = %q, %q", all[0].UUID, all[1].UUID)
	}
}

func TestErrorsView(t *testing.T) {
	path := writeTranscript(t,
		assistantLineWith("a1", "", "req_1", "tool_use", `{"type":"tool_use","id":"t1","name":"Bash","input":{}}`),
		entryLine("user", "u1", "a1", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"boom","is_error":true}]}`),
		assistantLineWith("a2", "u1", "req_1", "tool_use", `{"type":"tool_use","id":"t2","name":"Read","input":{}}`),
		entryLine("user", "u2", "a2", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t2","content":"fine","is_error":false}]}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	failed := tr.Errors()
	if len(failed) != 1 {
		t.Fatalf("Errors() = %d, want 1", len(failed))
	}
	if failed[0].ToolUseID != "t1" {
		t.Errorf("wrong result: %q", failed[0].ToolUseID)
	}
}

func TestTurns_GroupByRequestID(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "go"),
		assistantLineWith("a1", "u1", "req_1", "tool_use", `{"type":"thinking","thinking":"hmm","signature":"s"},{"type":"tool_use","id":"t1","name":"Bash","input":{}}`),
		entryLine("user", "u2", "a1", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"out","is_error":false}]}`),
		assistantLineWith("a2", "u2", "req_1", "end_turn", `{"type":"text","text":"all done"}`),
		assistantLineWith("a3", "u2", "req_2", "", `{"type":"text","text":"still streaming"}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turns := tr.Turns()
	if len(turns) != 2 {
		t.Fatalf("Turns() = %d, want 2", len(turns))
	}

	first := turns[0]
	if first.RequestID != "req_1" || len(first.Entries) != 2 {
		t.Fatalf("first turn = %q with %d entries", first.RequestID, len(first.Entries))
	}
	if first.Text() != "all done" {
		t.Errorf("Text() = %q", first.Text())
	}
	if first.Thinking() != "hmm" {
		t.Errorf("Thinking() = %q", first.Thinking())
	}
	if !first.HasToolUse() || len(first.ToolUses()) != 1 {
		t.Error("tool use not aggregated across the turn")
	}
	if !first.IsComplete() {
		t.Error("turn ending in end_turn should be complete")
	}
	if usage := first.Usage(); usage.InputTokens != 20 || usage.OutputTokens != 10 {
		t.Errorf("Usage() = %+v", usage)
	}

	second := turns[1]
	if second.IsComplete() {
		t.Error("turn with no stop reason should be incomplete")
	}
}

func TestTurns_ThreeEntriesInterleavedOneTurn(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "go"),
		assistantLineWith("a1", "u1", "req_001", "tool_use", `{"type":"tool_use","id":"t1","name":"Bash","input":{}}`),
		entryLine("user", "u2", "a1", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"x","is_error":false}]}`),
		assistantLineWith("a2", "u2", "req_001", "tool_use", `{"type":"tool_use","id":"t2","name":"Read","input":{}}`),
		entryLine("user", "u3", "a2", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t2","content":"y","is_error":false}]}`),
		assistantLineWith("a3", "u3", "req_001", "end_turn", `{"type":"text","text":"done"}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	turns := tr.Turns()
	if len(turns) != 1 {
		t.Fatalf("Turns() = %d, want 1", len(turns))
	}
	turn := turns[0]
	if len(turn.Entries) != 3 {
		t.Fatalf("members = %d, want 3", len(turn.Entries))
	}
	// Members retain file order.
	for i, want := range []string{"a1", "a2", "a3"} {
		if turn.Entries[i].UUID != want {
			t.Errorf("member %d = %q, want %q", i, turn.Entries[i].UUID, want)
		}
	}
}

func TestTurns_ToolUsePauseIsIncomplete(t *testing.T) {
	path := writeTranscript(t,
		assistantLineWith("a1", "", "req_1", "tool_use", `{"type":"tool_use","id":"t1","name":"Bash","input":{}}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	turns := tr.Turns()
	if len(turns) != 1 {
		t.Fatalf("Turns() = %d, want 1", len(turns))
	}
	if turns[0].IsComplete() {
		t.Error("a turn paused for a tool round trip is not complete")
	}
}

func TestTurns_TerminalReasonAnywhereCompletes(t *testing.T) {
	// The terminal entry precedes a trailing tool_use entry in the same
	// request; the turn is still complete.
	path := writeTranscript(t,
		assistantLineWith("a1", "", "req_1", "end_turn", `{"type":"text","text":"done"}`),
		assistantLineWith("a2", "a1", "req_1", "tool_use", `{"type":"tool_use","id":"t1","name":"Bash","input":{}}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	turns := tr.Turns()
	if len(turns) != 1 {
		t.Fatalf("Turns() = %d, want 1", len(turns))
	}
	if !turns[0].IsComplete() {
		t.Error("turn with an earlier terminal stop reason should be complete")
	}
}

func TestEntriesByRequestID(t *testing.T) {
	path := writeTranscript(t,
		assistantLineWith("a1", "", "req_9", "tool_use", `{"type":"text","text":"x"}`),
		assistantLineWith("a2", "a1", "req_9", "end_turn", `{"type":"text","text":"y"}`),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tr.EntriesByRequestID("req_9"); len(got) != 2 {
		t.Errorf("EntriesByRequestID = %d, want 2", len(got))
	}
	if got := tr.EntriesByRequestID("req_none"); got != nil {
		t.Errorf("miss should return nil, got %v", got)
	}
}

func TestSnapshots(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"file-history-snapshot","messageId":"msg_01","snapshot":{"trackedFileBackups":{}},"isSnapshotUpdate":false}`,
		userLine("u1", "", "hello"),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.FindSnapshot("msg_01") == nil {
		t.Error("snapshot not indexed by message id")
	}
	if tr.FindSnapshot("msg_02") != nil {
		t.Error("miss should return nil")
	}
	if got := tr.FileSnapshots(); len(got) != 1 {
		t.Errorf("FileSnapshots() = %d, want 1", len(got))
	}
}

func TestStats(t *testing.T) {
	path := writeTranscript(t,
		userLine("u1", "", "go"),
		assistantLineWith("a1", "u1", "req_1", "tool_use", `{"type":"tool_use","id":"t1","name":"Bash","input":{}}`),
		entryLine("user", "u2", "a1", `"message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"err","is_error":true}]}`),
		assistantLineWith("a2", "u2", "req_1", "end_turn", `{"type":"text","text":"done"}`),
		boundaryLine("cb1", "a2"),
		userLine("u3", "cb1", "next"),
	)
	tr := New(path)
	if err := tr.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stats := tr.Stats()
	if stats.Live != 1 || stats.Archived != 5 {
		t.Errorf("split = %d live / %d archived", stats.Live, stats.Archived)
	}
	if stats.Users != 3 || stats.Assistants != 2 || stats.Systems != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.ToolUses != 1 || stats.ToolResults != 1 || stats.ToolErrors != 1 {
		t.Errorf("tools = %+v", stats)
	}
	if stats.Turns != 1 {
		t.Errorf("Turns = %d, want 1", stats.Turns)
	}
	if stats.TokensIn != 20 || stats.TokensOut != 10 {
		t.Errorf("tokens = %d in / %d out", stats.TokensIn, stats.TokensOut)
	}
	if stats.Compactions != 1 {
		t.Errorf("Compactions = %d", stats.Compactions)
	}
}
