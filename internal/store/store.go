// Package store exports transcripts into a SQLite database for ad hoc
// querying with sql tools.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"hookline/internal/transcript"
)

// Store wraps a SQLite database holding exported transcript data
type Store struct {
	conn *sql.DB
	Path string
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	uuid        TEXT PRIMARY KEY,
	parent_uuid TEXT,
	kind        TEXT NOT NULL,
	subtype     TEXT,
	session_id  TEXT,
	request_id  TEXT,
	timestamp   TEXT,
	line        INTEGER,
	archived    INTEGER NOT NULL DEFAULT 0,
	is_meta     INTEGER NOT NULL DEFAULT 0,
	text        TEXT
);
CREATE INDEX IF NOT EXISTS idx_entries_parent ON entries(parent_uuid);
CREATE INDEX IF NOT EXISTS idx_entries_request ON entries(request_id);

CREATE TABLE IF NOT EXISTS tool_calls (
	id         TEXT PRIMARY KEY,
	entry_uuid TEXT REFERENCES entries(uuid),
	name       TEXT NOT NULL,
	input      TEXT,
	result     TEXT,
	is_error   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_name ON tool_calls(name);
`

// Open opens a SQLite database with WAL mode and foreign keys enabled and
// ensures the export schema exists
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{conn: conn, Path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// Export writes every entry and tool call of the transcript, archived
// included, in one transaction. The previous export is cleared first, so
// the database always reflects exactly one load.
func (s *Store) Export(t *transcript.Transcript) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning export: %w", err)
	}
	defer tx.Rollback()

	// tool_calls references entries, so it clears first.
	if _, err := tx.Exec("DELETE FROM tool_calls"); err != nil {
		return fmt.Errorf("clearing tool calls: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM entries"); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}

	insertEntry, err := tx.Prepare(`
		INSERT OR REPLACE INTO entries
		(uuid, parent_uuid, kind, subtype, session_id, request_id, timestamp, line, archived, is_meta, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer insertEntry.Close()

	insertCall, err := tx.Prepare(`
		INSERT OR REPLACE INTO tool_calls
		(id, entry_uuid, name, input, result, is_error)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing tool call insert: %w", err)
	}
	defer insertCall.Close()

	if err := exportEntries(insertEntry, insertCall, t.Archived(), true); err != nil {
		return err
	}
	if err := exportEntries(insertEntry, insertCall, t.Entries(), false); err != nil {
		return err
	}
	if err := exportResults(tx, t); err != nil {
		return err
	}

	return tx.Commit()
}

func exportEntries(insertEntry, insertCall *sql.Stmt, entries []transcript.Entry, archived bool) error {
	for _, entry := range entries {
		row := entryRow(entry)
		if row.uuid == "" {
			continue
		}
		if _, err := insertEntry.Exec(
			row.uuid, nullable(row.parent), row.kind, nullable(row.subtype),
			nullable(row.session), nullable(row.request), nullable(row.timestamp),
			entry.Line(), boolInt(archived), boolInt(row.meta), nullable(row.text),
		); err != nil {
			return fmt.Errorf("inserting entry %s: %w", row.uuid, err)
		}

		a, ok := entry.(*transcript.AssistantEntry)
		if !ok {
			continue
		}
		for _, use := range a.ToolUses() {
			input, err := json.Marshal(use.Input)
			if err != nil {
				return fmt.Errorf("encoding tool input %s: %w", use.ID, err)
			}
			if _, err := insertCall.Exec(use.ID, row.uuid, use.Name, string(input), nil, 0); err != nil {
				return fmt.Errorf("inserting tool call %s: %w", use.ID, err)
			}
		}
	}
	return nil
}

// exportResults backfills result text onto the matching tool_calls rows
func exportResults(tx *sql.Tx, t *transcript.Transcript) error {
	for _, result := range t.ToolResults(transcript.WithArchived(true)) {
		if _, err := tx.Exec(
			`UPDATE tool_calls SET result = ?, is_error = ? WHERE id = ?`,
			result.Text(), boolInt(result.IsError), result.ToolUseID,
		); err != nil {
			return fmt.Errorf("updating tool call %s: %w", result.ToolUseID, err)
		}
	}
	return nil
}

type row struct {
	uuid, parent, kind, subtype, session, request, timestamp, text string
	meta                                                           bool
}

func entryRow(entry transcript.Entry) row {
	r := row{kind: entry.EntryType()}
	switch e := entry.(type) {
	case *transcript.UserEntry:
		r.fromBase(&e.EntryBase)
		r.text = e.Text()
		r.meta = e.IsMeta || e.IsVisibleInTranscriptOnly
	case *transcript.AssistantEntry:
		r.fromBase(&e.EntryBase)
		r.request = e.RequestID
		r.text = e.Text()
	case *transcript.CompactBoundary:
		r.fromBase(&e.EntryBase)
		r.subtype = e.Subtype
		r.text = e.Content
	case *transcript.StopHookSummary:
		r.fromBase(&e.EntryBase)
		r.subtype = e.Subtype
		r.text = e.Content
	case *transcript.SystemEntry:
		r.fromBase(&e.EntryBase)
		r.subtype = e.Subtype
		r.text = e.Content
	case *transcript.FileHistorySnapshot:
		r.uuid = fmt.Sprintf("snapshot-%s", e.MessageID)
		r.kind = e.EntryType()
	case *transcript.GenericEntry:
		r.fromBase(&e.EntryBase)
	}
	return r
}

func (r *row) fromBase(base *transcript.EntryBase) {
	r.uuid = base.UUID
	r.parent = base.ParentUUID
	r.session = base.SessionID
	r.timestamp = base.Timestamp
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
