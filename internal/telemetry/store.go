// Package telemetry implements the process sampler and time-series store
// from spec §4.4: differential per-process CPU/RSS samples batched into a
// single SQLite table, with windowed aggregation queries and bounded
// retention. The dataDir-keyed path and world-readable creation mode
// follow the teacher's unifiedresources SQLite store conventions
// (internal/unifiedresources/store_test.go, store_permissions_test.go);
// WAL and busy-timeout pragmas follow the same teacher idiom used
// throughout its SQLite-backed stores.
package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Sample is one (timestamp, process) observation.
type Sample struct {
	Timestamp  time.Time
	PID        int32
	Name       string
	CPUPercent float64
	MemBytes   uint64
}

// Store is the SQLite-backed samples table plus retention/eviction and
// windowed query helpers.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) and opens the telemetry database at path. The
// file is created world-readable (0644) so the unprivileged CLI client
// can open it read-only without group membership tricks, per spec §4.4.
func Open(path string) (*Store, error) {
	if err := ensureFileMode(path, 0o644); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open telemetry db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureFileMode(path, 0o644); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func ensureFileMode(path string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create telemetry dir: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, mode)
		if createErr != nil {
			return fmt.Errorf("create telemetry db file: %w", createErr)
		}
		f.Close()
	}
	return os.Chmod(path, mode)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS samples (
	timestamp    INTEGER NOT NULL,
	pid          INTEGER NOT NULL,
	name         TEXT NOT NULL,
	cpu_percent  REAL NOT NULL,
	mem_bytes    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_name ON samples(name);
CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON samples(timestamp);
CREATE INDEX IF NOT EXISTS idx_samples_name_timestamp ON samples(name, timestamp);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`)
	if err != nil {
		return fmt.Errorf("migrate telemetry schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch writes all samples in one transaction, per spec §4.4
// ("batches all samples into one transaction").
func (s *Store) InsertBatch(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO samples (timestamp, pid, name, cpu_percent, mem_bytes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, sm := range samples {
		if _, err := stmt.Exec(sm.Timestamp.Unix(), sm.PID, sm.Name, sm.CPUPercent, sm.MemBytes); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// SetMeta upserts a key/value pair in the meta table.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// GetMeta reads a meta value, returning ok=false if absent.
func (s *Store) GetMeta(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}
