package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// Themes accepted by SetTheme.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

const themeKey = "theme"

// cursorLayout is fixed width so stored times compare as strings.
const cursorLayout = "2006-01-02T15:04:05.000000000Z"

// LocalStore is the client's sqlite cache of last known read cursors and
// display preferences. Cursors stored here are hints only; the server holds
// the real read state.
type LocalStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenLocalStore opens or creates the cache database at path.
func OpenLocalStore(path string, logger zerolog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	store := &LocalStore{
		db:     db,
		logger: logger.With().Str("component", "local_store").Logger(),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache database: %w", err)
	}

	store.logger.Debug().Str("path", path).Msg("cache database opened")
	return store, nil
}

func (s *LocalStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS read_cursors (
			subdomain TEXT NOT NULL,
			worker_id TEXT NOT NULL,
			last_read_at TEXT NOT NULL,
			PRIMARY KEY (subdomain, worker_id)
		);

		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}

// SaveCursor records that the admin read a worker's chat up to at. An older
// value never replaces a newer one.
func (s *LocalStore) SaveCursor(ctx context.Context, subdomain string, workerID uuid.UUID, at time.Time) error {
	query := `
		INSERT INTO read_cursors (subdomain, worker_id, last_read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (subdomain, worker_id) DO UPDATE
		SET last_read_at = excluded.last_read_at
		WHERE excluded.last_read_at > read_cursors.last_read_at
	`
	_, err := s.db.ExecContext(ctx, query, subdomain, workerID.String(), at.UTC().Format(cursorLayout))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// SaveCursors records the same read time for several workers.
func (s *LocalStore) SaveCursors(ctx context.Context, subdomain string, workerIDs []uuid.UUID, at time.Time) error {
	for _, id := range workerIDs {
		if err := s.SaveCursor(ctx, subdomain, id, at); err != nil {
			return err
		}
	}
	return nil
}

// Cursors returns the cached read cursors of a tenant keyed by worker.
func (s *LocalStore) Cursors(ctx context.Context, subdomain string) (map[uuid.UUID]time.Time, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT worker_id, last_read_at FROM read_cursors WHERE subdomain = ?`, subdomain)
	if err != nil {
		return nil, fmt.Errorf("query cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var rawID, rawAt string
		if err := rows.Scan(&rawID, &rawAt); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			s.logger.Warn().Str("worker_id", rawID).Msg("skipping cursor with invalid worker id")
			continue
		}
		at, err := time.Parse(cursorLayout, rawAt)
		if err != nil {
			s.logger.Warn().Str("worker_id", rawID).Msg("skipping cursor with invalid time")
			continue
		}
		cursors[id] = at
	}
	return cursors, rows.Err()
}

// SetPreference stores a preference value.
func (s *LocalStore) SetPreference(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

// Preference returns a stored preference or def when unset.
func (s *LocalStore) Preference(ctx context.Context, key, def string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, nil
}

// Theme returns the chat theme, light by default.
func (s *LocalStore) Theme(ctx context.Context) (string, error) {
	return s.Preference(ctx, themeKey, ThemeLight)
}

// SetTheme stores the chat theme.
func (s *LocalStore) SetTheme(ctx context.Context, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("unknown theme %q", theme)
	}
	return s.SetPreference(ctx, themeKey, theme)
}
