// Package store provides a SQLite-backed audit log of answered questions.
// One row is written per /ask/stream request recording what happened,
// never the question or answer text itself.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Request outcomes recorded in the audit log.
const (
	// OutcomeOK means the full answer was streamed to the client.
	OutcomeOK = "ok"
	// OutcomeError means the pipeline or the generation stream failed.
	OutcomeError = "error"
	// OutcomeClientGone means the client disconnected mid-stream.
	OutcomeClientGone = "client_gone"
	// OutcomeRejected means the question failed boundary validation.
	OutcomeRejected = "rejected"
)

// RequestRecord is one audit row describing a handled ask request.
// Only sizes and timings are kept; question and answer text are never stored.
type RequestRecord struct {
	// QuestionChars is the length of the trimmed question.
	QuestionChars int
	// TopK is the effective retrieval top-k used for the request.
	TopK int
	// Outcome is one of the Outcome* constants.
	Outcome string
	// Fragments is the number of answer fragments streamed to the client.
	Fragments int
	// AnswerChars is the total length of the streamed answer.
	AnswerChars int
	// DurationMs is the wall-clock request duration in milliseconds.
	DurationMs int64
	// CreatedAt is when the record was persisted.
	CreatedAt time.Time
}

// RequestLog persists and retrieves request audit records.
// Implementations must be safe for concurrent use.
type RequestLog interface {
	// Append persists a single request record.
	Append(ctx context.Context, rec RequestRecord) error
	// Recent returns the most recent n records, newest-first.
	// If fewer than n records exist, all are returned.
	Recent(ctx context.Context, n int) ([]RequestRecord, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteLog is a RequestLog backed by a local SQLite database.
type SQLiteLog struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the request audit database.
// It resolves to ~/.ragapi/requests.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".ragapi")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "requests.db"), nil
}

// Open opens (or creates) a SQLiteLog at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLog, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteLog{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteLog) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS requests (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    question_chars INTEGER NOT NULL,
    top_k          INTEGER NOT NULL,
    outcome        TEXT    NOT NULL,
    fragments      INTEGER NOT NULL,
    answer_chars   INTEGER NOT NULL,
    duration_ms    INTEGER NOT NULL,
    created_at     INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_requests_created
    ON requests (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single request record.
func (s *SQLiteLog) Append(ctx context.Context, rec RequestRecord) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `INSERT INTO requests (question_chars, top_k, outcome, fragments, answer_chars, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		rec.QuestionChars, rec.TopK, rec.Outcome, rec.Fragments, rec.AnswerChars, rec.DurationMs, createdAt.Unix(),
	); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n records, newest-first.
func (s *SQLiteLog) Recent(ctx context.Context, n int) ([]RequestRecord, error) {
	const q = `
SELECT question_chars, top_k, outcome, fragments, answer_chars, duration_ms, created_at
FROM   requests
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var recs []RequestRecord
	for rows.Next() {
		var rec RequestRecord
		var ts int64
		if err := rows.Scan(&rec.QuestionChars, &rec.TopK, &rec.Outcome, &rec.Fragments, &rec.AnswerChars, &rec.DurationMs, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		rec.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return recs, nil
}

// Close releases the database connection pool.
func (s *SQLiteLog) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
