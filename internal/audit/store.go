// Package audit persists an append-only trail of connection, match, and
// AI-decision events to SQLite, grounded on the teacher's database
// connection/pooling style (internal/database/connection.go) but
// stripped down to the one table this module actually needs: it never
// needed the teacher's analytics schema, migrator, or query optimizer,
// only a durable log a postmortem can replay.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"battlemediation/pkg/logger"
)

// Event is one row of the audit trail (spec.md §10's audit requirement).
type Event struct {
	Timestamp time.Time
	Kind      string // "connection", "match", "ai-decision"
	ConnID    string
	MatchID   string
	Side      string
	Detail    string
}

// Store is the audit log's SQLite-backed sink.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         DATETIME NOT NULL,
	kind       TEXT NOT NULL,
	conn_id    TEXT,
	match_id   TEXT,
	side       TEXT,
	detail     TEXT
);
CREATE INDEX IF NOT EXISTS idx_audit_match ON audit_events(match_id);
CREATE INDEX IF NOT EXISTS idx_audit_conn ON audit_events(conn_id);
`

// Open creates (or opens) the SQLite file at path and ensures the audit
// schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("audit: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}

	logger.StreamingConnLogger.Info("audit log opened at %s", path)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO audit_events (ts, kind, conn_id, match_id, side, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Kind, e.ConnID, e.MatchID, e.Side, e.Detail,
	)
	if err != nil {
		logger.StreamingConnLogger.Warn("audit: insert failed: %v", err)
	}
}

// RecordConnection logs a connection lifecycle event (accept, reconnect, drop).
func (s *Store) RecordConnection(connID, detail string) {
	s.record(Event{Kind: "connection", ConnID: connID, Detail: detail})
}

// RecordMatch logs a match lifecycle event (started, bound, ended).
func (s *Store) RecordMatch(matchID, detail string) {
	s.record(Event{Kind: "match", MatchID: matchID, Detail: detail})
}

// RecordAIDecision logs one tiered AI choice for replay/audit.
func (s *Store) RecordAIDecision(matchID, side, detail string) {
	s.record(Event{Kind: "ai-decision", MatchID: matchID, Side: side, Detail: detail})
}

// Recent returns the most recent n audit events, newest first.
func (s *Store) Recent(n int) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT ts, kind, conn_id, match_id, side, detail FROM audit_events ORDER BY id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var connID, matchID, side, detail sql.NullString
		if err := rows.Scan(&e.Timestamp, &e.Kind, &connID, &matchID, &side, &detail); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		e.ConnID, e.MatchID, e.Side, e.Detail = connID.String, matchID.String, side.String, detail.String
		events = append(events, e)
	}
	return events, rows.Err()
}
