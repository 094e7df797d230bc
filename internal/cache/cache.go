// Package cache stores compiled bundles in a local SQLite database keyed
// by the SHA-256 of the source text, so repeat runs of an unchanged script
// skip the front end entirely.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bundles (
	source_hash TEXT PRIMARY KEY,
	build_id    TEXT NOT NULL,
	data        BLOB NOT NULL,
	created_at  INTEGER NOT NULL
);`

// Store is an open bundle cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// HashSource returns the cache key for a source text.
func HashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached bundle bytes for sourceHash, or ok=false on a
// miss.
func (s *Store) Get(sourceHash string) (data []byte, buildID string, ok bool, err error) {
	row := s.db.QueryRow(`SELECT data, build_id FROM bundles WHERE source_hash = ?`, sourceHash)
	switch err = row.Scan(&data, &buildID); err {
	case nil:
		return data, buildID, true, nil
	case sql.ErrNoRows:
		return nil, "", false, nil
	default:
		return nil, "", false, fmt.Errorf("read cache: %w", err)
	}
}

// Put stores (or replaces) the bundle bytes for sourceHash.
func (s *Store) Put(sourceHash, buildID string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO bundles (source_hash, build_id, data, created_at) VALUES (?, ?, ?, ?)`,
		sourceHash, buildID, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Stats reports the number of cached bundles and their total size in
// bytes, for the CLI's --stats output.
func (s *Store) Stats() (entries int64, bytes int64, err error) {
	row := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(data)), 0) FROM bundles`)
	if err := row.Scan(&entries, &bytes); err != nil {
		return 0, 0, fmt.Errorf("read cache stats: %w", err)
	}
	return entries, bytes, nil
}
