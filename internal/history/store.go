package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cavacolor/internal/config"
	"cavacolor/internal/playback"
)

// Entry is one applied palette.
type Entry struct {
	ID         int64
	TrackID    playback.TrackID
	Title      string
	Artist     string
	Source     playback.Source
	Colors     []string
	ConfigPath string
	AppliedAt  time.Time
}

// Store manages the history journal.
type Store struct {
	db   *sql.DB
	path string
	keep int
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	colorSeparator          = " "
)

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

func retryOnBusy(ctx context.Context, op func() error) error {
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

// Open initializes or connects to the history database under the state dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.HistoryPath(), cfg.History.Keep)
}

// OpenPath opens the database at path, keeping at most keep entries after
// each Record. keep <= 0 disables pruning.
func OpenPath(path string, keep int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
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

	store := &Store{db: db, path: path, keep: keep}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends an entry and prunes the journal to the configured size.
func (s *Store) Record(ctx context.Context, entry Entry) (*Entry, error) {
	if entry.TrackID == "" {
		return nil, errors.New("history entry requires a track id")
	}
	if len(entry.Colors) == 0 {
		return nil, errors.New("history entry requires colors")
	}
	if entry.AppliedAt.IsZero() {
		entry.AppliedAt = time.Now()
	}
	entry.AppliedAt = entry.AppliedAt.UTC()

	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`INSERT INTO applied_palettes (track_id, title, artist, source, colors, config_path, applied_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			string(entry.TrackID),
			entry.Title,
			entry.Artist,
			string(entry.Source),
			strings.Join(entry.Colors, colorSeparator),
			entry.ConfigPath,
			entry.AppliedAt.Format(time.RFC3339Nano),
		)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("insert history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("history entry id: %w", err)
	}
	entry.ID = id

	if s.keep > 0 {
		if _, err := s.Prune(ctx, s.keep); err != nil {
			return &entry, err
		}
	}
	return &entry, nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, track_id, title, artist, source, colors, config_path, applied_at
         FROM applied_palettes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry           Entry
			track, source   string
			colors, applied string
		)
		if err := rows.Scan(&entry.ID, &track, &entry.Title, &entry.Artist, &source, &colors, &entry.ConfigPath, &applied); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entry.TrackID = playback.TrackID(track)
		entry.Source = playback.Source(source)
		entry.Colors = strings.Fields(colors)
		if ts, err := time.Parse(time.RFC3339Nano, applied); err == nil {
			entry.AppliedAt = ts
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Prune deletes all but the newest keep entries and returns how many were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx,
			`DELETE FROM applied_palettes WHERE id NOT IN (
                SELECT id FROM applied_palettes ORDER BY id DESC LIMIT ?
             )`, keep)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return removed, nil
}
