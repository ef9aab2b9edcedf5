package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "cache.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())
}

func TestOpen_ReopenPreservesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO weather_cache (cache_key, endpoint, city, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"current:berlin", "current", "berlin", `{"city":"Berlin"}`,
		time.Now().Unix(), time.Now().Add(time.Hour).Unix(),
	)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	var data string
	err = db.QueryRow(`SELECT data FROM weather_cache WHERE cache_key = ?`, "current:berlin").Scan(&data)
	require.NoError(t, err)
	require.Equal(t, `{"city":"Berlin"}`, data)
}

func TestOpen_CacheKeyIsUnique(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()

	insert := `INSERT INTO weather_cache (cache_key, endpoint, city, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = db.Exec(insert, "current:berlin", "current", "berlin", "{}", 1, 2)
	require.NoError(t, err)
	_, err = db.Exec(insert, "current:berlin", "current", "berlin", "{}", 1, 2)
	require.Error(t, err, "duplicate cache_key must violate the unique constraint")
}

func TestPurgeExpiredAt(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	insert := `INSERT INTO weather_cache (cache_key, endpoint, city, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = db.Exec(insert, "current:old", "current", "old", "{}", now.Add(-2*time.Hour).Unix(), now.Add(-time.Hour).Unix())
	require.NoError(t, err)
	_, err = db.Exec(insert, "current:live", "current", "live", "{}", now.Unix(), now.Add(time.Hour).Unix())
	require.NoError(t, err)

	n, err := PurgeExpiredAt(db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	var remaining int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM weather_cache`).Scan(&remaining))
	require.Equal(t, 1, remaining)

	n, err = PurgeExpiredAt(db, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
}
