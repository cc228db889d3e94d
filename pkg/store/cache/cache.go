// Package cache is the Project Store's cache/ directory: a pure-Go
// SQLite-backed cache of per-file classification results keyed by content
// hash. It is derived data and safe to delete. No other gitup package
// opens it: a scan neither reads nor fills it. Grounded on the teacher's
// storage/sqlite package.
package cache

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/crashappsec/gitup/pkg/core/errors"
)

// Cache wraps a single-writer SQLite connection under a project's
// .gitup/cache/ directory.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the classification cache at dir/scan.db.
func Open(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating cache directory %s", dir)
	}

	dbPath := filepath.Join(dir, "scan.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "opening classification cache")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	c := &Cache{db: db}
	if err := c.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error { return c.db.Close() }

func (c *Cache) migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS file_classifications (
			content_hash  TEXT PRIMARY KEY,
			path          TEXT NOT NULL,
			risk_type     TEXT,
			severity      TEXT,
			matched_by    TEXT,
			classified_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(err, "creating file_classifications table")
	}
	return nil
}

// Classification is a cached per-file scan result. RiskType and Severity
// are empty when the cached result was "no risk found", which is itself
// worth caching since it's the common case on a large repeat scan.
type Classification struct {
	Path      string
	RiskType  string
	Severity  string
	MatchedBy string
}

// Lookup returns the cached classification for contentHash, if present.
func (c *Cache) Lookup(ctx context.Context, contentHash string) (Classification, bool, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT path, COALESCE(risk_type, ''), COALESCE(severity, ''), COALESCE(matched_by, '')
		FROM file_classifications WHERE content_hash = ?`, contentHash)

	var cl Classification
	err := row.Scan(&cl.Path, &cl.RiskType, &cl.Severity, &cl.MatchedBy)
	if err == sql.ErrNoRows {
		return Classification{}, false, nil
	}
	if err != nil {
		return Classification{}, false, errors.Wrap(err, "looking up cached classification")
	}
	return cl, true, nil
}

// Store upserts a classification result for contentHash.
func (c *Cache) Store(ctx context.Context, contentHash string, cl Classification) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO file_classifications (content_hash, path, risk_type, severity, matched_by, classified_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO UPDATE SET
			path = excluded.path,
			risk_type = excluded.risk_type,
			severity = excluded.severity,
			matched_by = excluded.matched_by,
			classified_at = excluded.classified_at
	`, contentHash, cl.Path, cl.RiskType, cl.Severity, cl.MatchedBy, time.Now())
	if err != nil {
		return errors.Wrap(err, "storing classification")
	}
	return nil
}

// Clear removes every cached classification.
func (c *Cache) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM file_classifications")
	if err != nil {
		return errors.Wrap(err, "clearing classification cache")
	}
	return nil
}
