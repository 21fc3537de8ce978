package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"grabit/internal/config"
)

// Entry is one archived download.
type Entry struct {
	ID              int64     `json:"id"`
	TaskID          string    `json:"task_id"`
	Kind            string    `json:"kind"`
	URL             string    `json:"url"`
	Title           string    `json:"title,omitempty"`
	Format          string    `json:"format,omitempty"`
	Quality         int       `json:"quality,omitempty"`
	FilePath        string    `json:"file_path,omitempty"`
	FileSize        int64     `json:"file_size,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Store manages the download archive backed by SQLite. The archive is an
// audit record only; nothing ever reads it back to restore tasks.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the history database. The location comes
// from the history config section, defaulting to history.db in the state dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := strings.TrimSpace(cfg.History.Path)
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Paths.StateDir, "history.db")
	}
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Record archives one completed download and fills in the entry id.
func (s *Store) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	if entry.CompletedAt.IsZero() {
		entry.CompletedAt = time.Now().UTC()
	}

	var res sql.Result
	err := s.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO download_history
             (task_id, kind, url, title, format, quality, file_path, file_size, duration_seconds, completed_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.TaskID,
			entry.Kind,
			entry.URL,
			nullableString(entry.Title),
			nullableString(entry.Format),
			entry.Quality,
			nullableString(entry.FilePath),
			entry.FileSize,
			entry.DurationSeconds,
			entry.CompletedAt.UTC().Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("record history entry: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

const entryColumns = "id, task_id, kind, url, title, format, quality, file_path, file_size, duration_seconds, completed_at"

// List returns archived downloads newest first. A limit of zero or below
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM download_history ORDER BY completed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Remove deletes one archived entry by id.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	var res sql.Result
	err := s.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM download_history WHERE id = ?`, id)
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("remove history entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove history entry: %w", err)
	}
	return affected > 0, nil
}

// Clear deletes every archived entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	var res sql.Result
	err := s.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, `DELETE FROM download_history`)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return affected, nil
}

// Count returns the number of archived entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM download_history`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		taskID       string
		kind         string
		rawURL       string
		title        sql.NullString
		format       sql.NullString
		quality      sql.NullInt64
		filePath     sql.NullString
		fileSize     sql.NullInt64
		duration     sql.NullFloat64
		completedRaw string
	)

	if err := scanner.Scan(
		&id,
		&taskID,
		&kind,
		&rawURL,
		&title,
		&format,
		&quality,
		&filePath,
		&fileSize,
		&duration,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:              id,
		TaskID:          taskID,
		Kind:            kind,
		URL:             rawURL,
		Title:           title.String,
		Format:          format.String,
		Quality:         int(quality.Int64),
		FilePath:        filePath.String,
		FileSize:        fileSize.Int64,
		DurationSeconds: duration.Float64,
	}
	if completed, err := time.Parse(time.RFC3339Nano, completedRaw); err == nil {
		entry.CompletedAt = completed
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) retryOnBusy(ctx context.Context, op func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
