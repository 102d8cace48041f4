package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists quota counters in a SQLite database so they survive
// process restarts.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the quota database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create quota db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open quota database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all access through Go's pool, which also makes Admit's
	// read-then-increment transaction race-free.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS quota_counters (
		key TEXT PRIMARY KEY,
		count INTEGER NOT NULL,
		window_start INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create quota_counters table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Admit increments the counter for clientKey inside one transaction.
// An expired window resets the counter to 1 and restarts the clock.
func (s *SQLiteStore) Admit(ctx context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin quota tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()

	var count int
	var startUnix int64
	err = tx.QueryRowContext(ctx,
		"SELECT count, window_start FROM quota_counters WHERE key = ?", clientKey,
	).Scan(&count, &startUnix)

	windowStart := time.Unix(startUnix, 0).UTC()
	switch {
	case errors.Is(err, sql.ErrNoRows), err == nil && now.Sub(windowStart) >= window:
		count = 1
		windowStart = now
		_, err = tx.ExecContext(ctx,
			`INSERT INTO quota_counters (key, count, window_start) VALUES (?, 1, ?)
			 ON CONFLICT(key) DO UPDATE SET count = 1, window_start = excluded.window_start`,
			clientKey, now.Unix())
	case err == nil:
		count++
		_, err = tx.ExecContext(ctx,
			"UPDATE quota_counters SET count = ? WHERE key = ?", count, clientKey)
	}
	if err != nil {
		return nil, fmt.Errorf("increment quota counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit quota tx: %w", err)
	}
	return admission(count, tierLimit, windowStart, window), nil
}

// Peek reads the client's standing without touching the counter.
func (s *SQLiteStore) Peek(ctx context.Context, clientKey string, tierLimit int, window time.Duration) (*Admission, error) {
	now := s.now().UTC()

	var count int
	var startUnix int64
	err := s.db.QueryRowContext(ctx,
		"SELECT count, window_start FROM quota_counters WHERE key = ?", clientKey,
	).Scan(&count, &startUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return freshAdmission(tierLimit), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read quota counter: %w", err)
	}

	windowStart := time.Unix(startUnix, 0).UTC()
	if now.Sub(windowStart) >= window {
		return freshAdmission(tierLimit), nil
	}
	adm := admission(count, tierLimit, windowStart, window)
	adm.Allowed = count < tierLimit
	return adm, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetClock overrides the store's clock. Tests only.
func (s *SQLiteStore) SetClock(now func() time.Time) { s.now = now }
