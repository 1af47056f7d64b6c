package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	sifterrors "github.com/sift-dev/sift/internal/errors"
)

const (
	sqliteDriver      = "sqlite"
	sqliteMaxAttempts = 5
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sift_state (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`

// SQLite persists keys in a local SQLite database, one row per key.
// Suitable for CLI tools and desktop-style services that want durable
// state without running a server.
type SQLite struct {
	path string
	db   *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the
// state table exists.
func OpenSQLite(path string) (*SQLite, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, sifterrors.New("E040").WithDetail("sqlite path must not be empty")
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, sifterrors.New("E040").WithDetail(fmt.Sprintf("sqlite path %q is a directory", path))
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, sifterrors.FromError(err, "E040")
		}
	}

	// busy_timeout + WAL reduce lock conflicts when several engine
	// instances share one database file.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open(sqliteDriver, dsn)
	if err != nil {
		return nil, sifterrors.FromError(err, "E040")
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, sifterrors.FromError(err, "E040")
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, sifterrors.FromError(err, "E040")
	}

	return &SQLite{path: path, db: db}, nil
}

func (s *SQLite) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.withRetry(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT value FROM sift_state WHERE key = ?`, key,
		).Scan(&value)
	})
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, sifterrors.FromError(err, "E040")
	}
	return value, true, nil
}

func (s *SQLite) SetItem(ctx context.Context, key, value string) error {
	err := s.withRetry(func() error {
		_, execErr := s.db.ExecContext(ctx, `
INSERT INTO sift_state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, time.Now().UTC().Format(time.RFC3339Nano))
		return execErr
	})
	if err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

func (s *SQLite) RemoveItem(ctx context.Context, key string) error {
	err := s.withRetry(func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM sift_state WHERE key = ?`, key)
		return execErr
	})
	if err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	err := s.withRetry(func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM sift_state`)
		return execErr
	})
	if err != nil {
		return sifterrors.FromError(err, "E041")
	}
	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withRetry retries on SQLite lock contention with a linear backoff.
func (s *SQLite) withRetry(fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= sqliteMaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == sqliteMaxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return lastErr
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

var _ Adapter = (*SQLite)(nil)
