// Package ledger provides a SQLite-backed record of ingestion runs. Every
// Insert outcome (attempted, accepted, surrounding object counts, observed
// delta, warnings, terminal error) is persisted so operators can audit what
// actually landed in the store after the fact, across restarts.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one recorded ingestion run.
type Entry struct {
	// Collection is the caller-facing collection name.
	Collection string
	// Attempted is how many documents the run submitted.
	Attempted int
	// Processed is how many objects the submission path accepted.
	Processed int
	// PreCount is the best-effort object count before the run (-1 unknown).
	PreCount int64
	// PostCount is the best-effort object count after the run (-1 unknown).
	PostCount int64
	// Delta is the observed object-count change, falling back to Processed
	// when the surrounding counts are unknown.
	Delta int
	// Duration is the wall-clock length of the run.
	Duration time.Duration
	// Warnings lists the run's partial failures.
	Warnings []string
	// Error is set when no insertion path was reachable at all.
	Error string
	// CreatedAt is when the run was recorded.
	CreatedAt time.Time
}

// ReportLedger persists and retrieves ingestion run records.
// Implementations must be safe for concurrent use.
type ReportLedger interface {
	// Record persists one ingestion run.
	Record(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest-first. If fewer than
	// n exist, all are returned.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the ledger.
	Close() error
}

// SQLiteLedger is a ReportLedger backed by a local SQLite database.
type SQLiteLedger struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the ingestion history database.
// It resolves to ~/.weavectl/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("ledger: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".weavectl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("ledger: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteLedger at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteLedger, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

// migrate creates the schema if it does not already exist.
func (l *SQLiteLedger) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS reports (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    collection   TEXT    NOT NULL,
    attempted    INTEGER NOT NULL,
    processed    INTEGER NOT NULL,
    pre_count    INTEGER NOT NULL DEFAULT -1,
    post_count   INTEGER NOT NULL DEFAULT -1,
    delta        INTEGER NOT NULL,
    duration_ms  INTEGER NOT NULL,
    warnings     TEXT    NOT NULL DEFAULT '',
    error        TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_reports_created
    ON reports (created_at);
`
	if _, err := l.db.Exec(ddl); err != nil {
		return fmt.Errorf("ledger: migrate: %w", err)
	}
	return nil
}

// warningSeparator joins warnings into one column. Newlines never appear
// inside individual warning messages.
const warningSeparator = "\n"

// Record persists one ingestion run.
func (l *SQLiteLedger) Record(ctx context.Context, e Entry) error {
	const q = `INSERT INTO reports (collection, attempted, processed, pre_count, post_count, delta, duration_ms, warnings, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := l.db.ExecContext(ctx, q,
		e.Collection, e.Attempted, e.Processed, e.PreCount, e.PostCount, e.Delta,
		e.Duration.Milliseconds(),
		strings.Join(e.Warnings, warningSeparator),
		e.Error,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest-first.
func (l *SQLiteLedger) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `
SELECT collection, attempted, processed, pre_count, post_count, delta, duration_ms, warnings, error, created_at
FROM   reports
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := l.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durMs, ts int64
		var warnings string
		if err := rows.Scan(&e.Collection, &e.Attempted, &e.Processed, &e.PreCount, &e.PostCount, &e.Delta, &durMs, &warnings, &e.Error, &ts); err != nil {
			return nil, fmt.Errorf("ledger: recent scan: %w", err)
		}
		e.Duration = time.Duration(durMs) * time.Millisecond
		e.CreatedAt = time.Unix(ts, 0)
		if warnings != "" {
			e.Warnings = strings.Split(warnings, warningSeparator)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: recent rows: %w", err)
	}
	return entries, nil
}

// Close releases the database connection pool.
func (l *SQLiteLedger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("ledger: close: %w", err)
	}
	return nil
}
