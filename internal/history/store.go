package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"babel/internal/config"
	"babel/internal/protocol"
)

// Store manages request history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open initializes or connects to the history database under data_dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath())
}

// OpenPath opens the database at dbPath and applies migrations.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordQueued inserts a request accepted by the worker.
func (s *Store) RecordQueued(ctx context.Context, req protocol.Request, peer string) error {
	return s.insert(ctx, req, peer, StatusQueued, "", "")
}

// RecordRejected inserts a request the worker refused to queue.
func (s *Store) RecordRejected(ctx context.Context, req protocol.Request, peer, kind, message string) error {
	return s.insert(ctx, req, peer, StatusRejected, kind, message)
}

func (s *Store) insert(ctx context.Context, req protocol.Request, peer string, status Status, kind, message string) error {
	if req.ID == "" {
		return errors.New("history: request id required")
	}
	now := formatTime(s.now())
	var finished any
	if status.Terminal() {
		finished = now
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO requests (
            id, peer, text, src_lang, tgt_lang, status, error_kind, error_message,
            queued_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		nullableString(peer),
		req.Text,
		req.SourceLanguage,
		req.TargetLanguage,
		status,
		nullableString(kind),
		nullableString(message),
		now,
		finished,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// MarkRunning records that the worker started processing id.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.transition(ctx, id,
		`UPDATE requests SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		StatusRunning, formatTime(s.now()), id, StatusQueued,
	)
}

// MarkCompleted stores the final output for id.
func (s *Store) MarkCompleted(ctx context.Context, id, output string, loaded bool) error {
	return s.transition(ctx, id,
		`UPDATE requests SET status = ?, output = ?, loaded = ?, finished_at = ? WHERE id = ? AND status = ?`,
		StatusCompleted, output, boolToInt(loaded), formatTime(s.now()), id, StatusRunning,
	)
}

// MarkFailed stores the failure classification for id.
func (s *Store) MarkFailed(ctx context.Context, id, kind, message string) error {
	return s.transition(ctx, id,
		`UPDATE requests SET status = ?, error_kind = ?, error_message = ?, finished_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, nullableString(kind), nullableString(message), formatTime(s.now()), id, StatusQueued, StatusRunning,
	)
}

func (s *Store) transition(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update request %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update request %s: %w", id, ErrInvalidTransition)
	}
	return nil
}

// Get returns the entry for id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM requests WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return entry, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM requests ORDER BY queued_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return entries, nil
}

// Counts returns the number of entries per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count requests: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM requests`)
	if err != nil {
		return 0, fmt.Errorf("clear requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// FailInterrupted marks queued and running entries left behind by a previous
// process as failed. It returns how many entries were updated.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE requests SET status = ?, error_kind = ?, error_message = ?, finished_at = ?
         WHERE status IN (?, ?)`,
		StatusFailed, "internal", "worker stopped before the request finished", formatTime(s.now()),
		StatusQueued, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted requests: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
