package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_cache (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	cache_key   TEXT    NOT NULL UNIQUE,
	endpoint    TEXT    NOT NULL,
	city        TEXT    NOT NULL,
	data        TEXT    NOT NULL,
	created_at  INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_key  ON weather_cache(cache_key);
CREATE INDEX IF NOT EXISTS idx_expires_at ON weather_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_city       ON weather_cache(city);
`

// Open initializes the SQLite cache database at path: creates the parent
// directory, opens and pings the connection, applies pragmas and schema.
// The returned handle is the single process-wide connection pool; pass it
// down explicitly, never stash it in a global. Callers sweep rows that
// expired while the process was down via PurgeExpiredAt.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	// WAL keeps readers unblocked during the upsert path.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -32000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create weather_cache table: %w", err)
	}

	return db, nil
}

// PurgeExpiredAt deletes every row whose expiry is strictly before now and
// reports how many were removed. Startup and periodic sweeps both land
// here; reads never depend on it because expiry is checked at read time.
func PurgeExpiredAt(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec("DELETE FROM weather_cache WHERE expires_at < ?", now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge expired cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged cache entries: %w", err)
	}
	return n, nil
}
