package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns the persisted entry collection. It is append-only: no update or
// delete path exists, so every derived view is a pure function of its rows.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, &StorageError{Op: "create db dir", Err: err}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &StorageError{Op: "open sqlite", Err: err}
	}

	s := &Store{db: db}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return &StorageError{Op: fmt.Sprintf("pragma %q", p), Err: err}
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// initSchema is idempotent; re-running it against an existing database is a
// no-op. The column set matches the original journal_entries table on disk.
func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS journal_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			entry_text TEXT NOT NULL,
			mood TEXT NOT NULL,
			tags TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON journal_entries(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_mood ON journal_entries(mood)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return &StorageError{Op: "init schema", Err: err}
		}
	}
	return nil
}

// Append validates, assigns an id, and durably persists a new entry in a
// single transaction. A zero timestamp defaults to the current time.
func (s *Store) Append(ctx context.Context, text, mood string, tags []string, timestamp time.Time) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if strings.TrimSpace(mood) == "" {
		return 0, &ValidationError{Field: "mood", Reason: "must not be empty"}
	}
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StorageError{Op: "begin append", Err: err}
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO journal_entries (timestamp, entry_text, mood, tags)
		VALUES (?, ?, ?, ?)
	`, timestamp.Format(TimeLayout), text, mood, JoinTags(tags))
	if err != nil {
		return 0, &StorageError{Op: "insert entry", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "entry id", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &StorageError{Op: "commit append", Err: err}
	}
	return id, nil
}

// List returns entries matching the filter, newest first. Ties on timestamp
// break by id ascending so the order is deterministic.
func (s *Store) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := `
		SELECT id, timestamp, entry_text, mood, tags, created_at
		FROM journal_entries
		WHERE 1=1
	`
	args := []any{}
	if !f.Date.IsZero() {
		q += ` AND date(timestamp) = date(?)`
		args = append(args, f.Date.Format(DateLayout))
	}
	if f.Mood != "" {
		q += ` AND mood = ?`
		args = append(args, f.Mood)
	}
	q += ` ORDER BY timestamp DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, &StorageError{Op: "list entries", Err: err}
	}
	defer rows.Close()
	return scanEntries(rows)
}

// All returns every entry in the requested timestamp order.
func (s *Store) All(ctx context.Context, order Order) ([]Entry, error) {
	q := `
		SELECT id, timestamp, entry_text, mood, tags, created_at
		FROM journal_entries
	`
	switch order {
	case Ascending:
		q += ` ORDER BY timestamp ASC, id ASC`
	default:
		q += ` ORDER BY timestamp DESC, id ASC`
	}

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &StorageError{Op: "load entries", Err: err}
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Count reports the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_entries`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, &StorageError{Op: "count entries", Err: err}
	}
	return n, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	result := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var ts, created, tags string
		if err := rows.Scan(&e.ID, &ts, &e.Text, &e.Mood, &tags, &created); err != nil {
			return nil, &StorageError{Op: "scan entry", Err: err}
		}
		var err error
		if e.Timestamp, err = parseStoredTime(ts); err != nil {
			return nil, &StorageError{Op: "parse timestamp", Err: err}
		}
		if e.CreatedAt, err = parseStoredTime(created); err != nil {
			return nil, &StorageError{Op: "parse created_at", Err: err}
		}
		e.Tags = SplitTags(tags)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "iterate entries", Err: err}
	}
	return result, nil
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err == nil {
		return t, nil
	}
	// Rows created via the column default carry a bare date in some older
	// databases.
	return time.ParseInLocation(DateLayout, s, time.Local)
}
