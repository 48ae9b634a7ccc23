// Package sqlite persists backfill cursors in a local SQLite database
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/weather-history-etl/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS backfill_cursors (
	name       TEXT PRIMARY KEY,
	next_date  TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// CursorStore keeps the next unprocessed date of named backfills.
type CursorStore struct {
	db *sql.DB
}

// Open opens (or creates) the cursor database at path.
func Open(ctx context.Context, path string) (*CursorStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cursor db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cursor schema: %w", err)
	}
	return &CursorStore{db: db}, nil
}

// Load returns the saved next date for name. ok is false when none is saved.
func (s *CursorStore) Load(ctx context.Context, name string) (time.Time, bool, error) {
	var next string
	err := s.db.QueryRowContext(ctx, `SELECT next_date FROM backfill_cursors WHERE name = ?`, name).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("load cursor %q: %w", name, err)
	}
	d, err := domain.ParseDate(next)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("cursor %q holds %q: %w", name, next, err)
	}
	return d, true, nil
}

// Save records next as the first unprocessed date for name.
func (s *CursorStore) Save(ctx context.Context, name string, next time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO backfill_cursors(name, next_date, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET next_date = excluded.next_date, updated_at = excluded.updated_at`,
		name, domain.FormatDate(next), domain.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("save cursor %q: %w", name, err)
	}
	return nil
}

// Close closes the database.
func (s *CursorStore) Close() error {
	return s.db.Close()
}
