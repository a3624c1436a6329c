// Package store persists an audit trail of tool invocations and monitoring
// checks in sqlite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store is the sqlite-backed audit store.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at the given DSN.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tool_calls (
			call_id TEXT PRIMARY KEY,
			tool TEXT NOT NULL,
			args TEXT,
			status TEXT NOT NULL,
			error TEXT,
			duration_ms INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tool_calls_created ON tool_calls(created_at)`,
		`CREATE TABLE IF NOT EXISTS monitor_checks (
			check_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			query TEXT NOT NULL,
			earliest TEXT NOT NULL,
			latest TEXT NOT NULL,
			result_count INTEGER NOT NULL,
			error TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monitor_checks_session ON monitor_checks(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ToolCallRecord is one audited tool invocation.
type ToolCallRecord struct {
	CallID     string
	Tool       string
	Args       json.RawMessage
	Status     string
	Error      string
	DurationMs int64
	CreatedAt  time.Time
}

// RecordToolCall stores one tool invocation outcome.
func (s *Store) RecordToolCall(ctx context.Context, tool string, args json.RawMessage, status string, callErr error, duration time.Duration) error {
	errText := ""
	if callErr != nil {
		errText = callErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (call_id, tool, args, status, error, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"tc_"+uuid.New().String()[:8], tool, string(args), status, errText, duration.Milliseconds(), time.Now())
	return err
}

// ListToolCalls returns the most recent tool invocations, newest first.
func (s *Store) ListToolCalls(ctx context.Context, limit int) ([]ToolCallRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT call_id, tool, args, status, error, duration_ms, created_at FROM tool_calls ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ToolCallRecord
	for rows.Next() {
		var r ToolCallRecord
		var args string
		if err := rows.Scan(&r.CallID, &r.Tool, &args, &r.Status, &r.Error, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Args = json.RawMessage(args)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CheckRecord is one audited monitoring iteration.
type CheckRecord struct {
	CheckID     string
	SessionID   string
	Query       string
	Earliest    string
	Latest      string
	ResultCount int
	Error       string
	CreatedAt   time.Time
}

// RecordCheck stores the outcome of one monitoring iteration. It satisfies
// monitor.CheckRecorder; failures are logged, never surfaced into the loop.
func (s *Store) RecordCheck(ctx context.Context, sessionID, query, earliest, latest string, resultCount int, checkErr error) {
	errText := ""
	if checkErr != nil {
		errText = checkErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO monitor_checks (check_id, session_id, query, earliest, latest, result_count, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"chk_"+uuid.New().String()[:8], sessionID, query, earliest, latest, resultCount, errText, time.Now())
	if err != nil {
		log.Printf("WARN: failed to record monitor check: %v", err)
	}
}

// ListChecks returns the audited iterations for a session, oldest first.
func (s *Store) ListChecks(ctx context.Context, sessionID string, limit int) ([]CheckRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT check_id, session_id, query, earliest, latest, result_count, error, created_at FROM monitor_checks WHERE session_id = ? ORDER BY created_at ASC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CheckRecord
	for rows.Next() {
		var r CheckRecord
		if err := rows.Scan(&r.CheckID, &r.SessionID, &r.Query, &r.Earliest, &r.Latest, &r.ResultCount, &r.Error, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
