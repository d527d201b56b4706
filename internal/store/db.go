package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Config holds database configuration.
type Config struct {
	Path          string
	RetentionDays int
}

// DB wraps a sqlx.DB with retention settings.
type DB struct {
	db            *sqlx.DB
	retentionDays int
	now           func() time.Time
}

// X returns the underlying *sqlx.DB for components that need direct access.
func (d *DB) X() *sqlx.DB {
	return d.db
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Open creates the directory, opens the SQLite database, sets WAL mode and
// pragmas, and ensures all tables exist. Path ":memory:" opens a private
// in-memory database.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is empty")
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if cfg.Path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	retDays := cfg.RetentionDays
	if retDays <= 0 {
		retDays = 90
	}

	d := &DB{db: db, retentionDays: retDays, now: time.Now}

	// Purge at startup so old history goes even if the maintenance
	// schedule never fires.
	if _, err := d.Cleanup(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "store: startup cleanup failed (non-fatal): %v\n", err)
	}

	return d, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_updated ON cache_entries(namespace, updated_at);

CREATE TABLE IF NOT EXISTS recommendations (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	location   TEXT NOT NULL,
	summary    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recommendations_created ON recommendations(created_at);
`

func createTables(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Cleanup deletes recommendations older than retentionDays and returns the
// number of rows removed. Cache rows are purged by their owning Cache.
func (d *DB) Cleanup(ctx context.Context) (int64, error) {
	cutoff := d.now().AddDate(0, 0, -d.retentionDays).Unix()
	res, err := d.db.ExecContext(ctx, "DELETE FROM recommendations WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup recommendations: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
