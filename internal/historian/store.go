// Package historian implements the second SQLite database described by the
// context/historian data model: action history, system-state snapshots,
// preferences, command usage, learning patterns, session metadata, issue
// tracking and decisions, repair history and metrics, the historian
// time-series tables, the file index, and health scores.
//
// Schema setup follows the same additive-migration discipline the teacher
// uses for its on-disk config persistence: CREATE ... IF NOT EXISTS first,
// then a sequence of migrations that are each guarded by a capability probe
// (does the column already exist?) so re-running them against an
// already-migrated database is a no-op. Migrations never drop or rename.
package historian

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

// Store wraps the historian SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the historian database at path, enables
// WAL journaling, synchronous=NORMAL, and foreign keys, and runs schema
// migrations. The file is created world-readable (0644), matching
// internal/telemetry.Open, so the unprivileged CLI client can read it
// directly without group membership tricks (spec §6 "DBs 0644 at
// creation").
func Open(path string) (*Store, error) {
	if err := ensureFileMode(path, 0o644); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("historian: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("historian: %s: %w", pragma, err)
		}
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

// ensureFileMode creates path's parent directory and chmods path to
// mode, matching internal/telemetry's store-permission idiom so both
// SQLite stores are created with the same world-readable contract.
func ensureFileMode(path string, mode os.FileMode) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("historian: create data dir: %w", err)
		}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, mode)
		if createErr != nil {
			return fmt.Errorf("historian: create db file: %w", createErr)
		}
		f.Close()
	}
	return os.Chmod(path, mode)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for packages that need direct access.
// No package in this module calls it.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS action_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			outcome TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			affected_items TEXT,
			evidence_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_action_history_case ON action_history(case_id)`,
		`CREATE INDEX IF NOT EXISTS idx_action_history_created ON action_history(created_at)`,

		`CREATE TABLE IF NOT EXISTS system_state_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			captured_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			inventory TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_system_state_log_captured ON system_state_log(captured_at)`,

		`CREATE TABLE IF NOT EXISTS user_preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			value_type TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS command_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			led_to_action INTEGER NOT NULL DEFAULT 0,
			run_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_command_usage_run_at ON command_usage(run_at)`,

		`CREATE TABLE IF NOT EXISTS learning_patterns (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_key TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL,
			confidence REAL NOT NULL,
			confirmation_count INTEGER NOT NULL DEFAULT 0,
			first_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS session_metadata (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			case_count INTEGER NOT NULL DEFAULT 0,
			mutation_count INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS issue_tracking (
			fingerprint TEXT PRIMARY KEY,
			probe_id TEXT NOT NULL,
			severity TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			evidence_ids TEXT,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			last_shown DATETIME,
			times_shown INTEGER NOT NULL DEFAULT 0,
			times_ignored INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active'
		)`,

		`CREATE TABLE IF NOT EXISTS issue_decisions (
			fingerprint TEXT PRIMARY KEY REFERENCES issue_tracking(fingerprint),
			snoozed_until DATETIME,
			suppressed INTEGER NOT NULL DEFAULT 0,
			decided_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS repair_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			case_id TEXT NOT NULL,
			mutation_id TEXT NOT NULL,
			result TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_repair_history_case ON repair_history(case_id)`,

		`CREATE TABLE IF NOT EXISTS repair_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			repair_id INTEGER NOT NULL REFERENCES repair_history(id),
			metric TEXT NOT NULL,
			before_value REAL,
			after_value REAL
		)`,

		`CREATE TABLE IF NOT EXISTS boot_sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booted_at DATETIME NOT NULL,
			kernel_version TEXT,
			clean_shutdown INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS cpu_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			window_start DATETIME NOT NULL,
			window_end DATETIME NOT NULL,
			avg_percent REAL NOT NULL,
			peak_percent REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cpu_windows_start ON cpu_windows(window_start)`,

		`CREATE TABLE IF NOT EXISTS memory_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			window_start DATETIME NOT NULL,
			window_end DATETIME NOT NULL,
			avg_bytes INTEGER NOT NULL,
			peak_bytes INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_windows_start ON memory_windows(window_start)`,

		`CREATE TABLE IF NOT EXISTS filesystem_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mount_path TEXT NOT NULL,
			window_start DATETIME NOT NULL,
			capacity_bytes INTEGER NOT NULL,
			used_bytes INTEGER NOT NULL,
			growth_bytes_per_day REAL,
			read_bytes_per_sec REAL,
			write_bytes_per_sec REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_filesystem_windows_mount ON filesystem_windows(mount_path, window_start)`,

		`CREATE TABLE IF NOT EXISTS network_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			iface TEXT NOT NULL,
			window_start DATETIME NOT NULL,
			rx_bytes_per_sec REAL,
			tx_bytes_per_sec REAL,
			error_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_network_windows_iface ON network_windows(iface, window_start)`,

		`CREATE TABLE IF NOT EXISTS network_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			iface TEXT NOT NULL,
			event TEXT NOT NULL,
			occurred_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS service_restarts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit TEXT NOT NULL,
			restarted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_service_restarts_unit ON service_restarts(unit, restarted_at)`,

		`CREATE TABLE IF NOT EXISTS log_signatures (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			unit TEXT NOT NULL,
			signature TEXT NOT NULL,
			occurrence_count INTEGER NOT NULL DEFAULT 1,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL,
			UNIQUE(unit, signature)
		)`,

		`CREATE TABLE IF NOT EXISTS baselines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			label TEXT NOT NULL,
			metric TEXT NOT NULL,
			mean REAL NOT NULL,
			stddev REAL NOT NULL,
			sample_count INTEGER NOT NULL,
			captured_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(label, metric)
		)`,

		`CREATE TABLE IF NOT EXISTS baseline_deltas (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			baseline_id INTEGER NOT NULL REFERENCES baselines(id),
			observed_value REAL NOT NULL,
			z_score REAL NOT NULL,
			flagged INTEGER NOT NULL DEFAULT 0,
			computed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS llm_usage_windows (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			window_start DATETIME NOT NULL,
			window_end DATETIME NOT NULL,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			request_count INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS file_index (
			path TEXT PRIMARY KEY,
			size_bytes INTEGER NOT NULL,
			mode INTEGER NOT NULL,
			mtime DATETIME NOT NULL,
			content_hash TEXT NOT NULL,
			indexed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS file_changes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			change_kind TEXT NOT NULL,
			previous_hash TEXT,
			new_hash TEXT,
			detected_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_file_changes_path ON file_changes(path, detected_at)`,

		`CREATE TABLE IF NOT EXISTS health_scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			computed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			overall_score INTEGER NOT NULL,
			component TEXT NOT NULL,
			component_score INTEGER NOT NULL,
			notes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_health_scores_computed ON health_scores(computed_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("historian: migrate: %w (stmt: %s)", err, stmt)
		}
	}

	if err := s.addColumnIfMissing("issue_tracking", "evidence_ids", "TEXT"); err != nil {
		return err
	}

	return s.setSchemaVersion(currentSchemaVersion)
}

// addColumnIfMissing is the capability-probe primitive every additive
// migration goes through: it inspects the table via PRAGMA table_info and
// only issues ALTER TABLE when the column is genuinely absent, so re-running
// migrate() against an already-migrated database is a no-op.
func (s *Store) addColumnIfMissing(table, column, decl string) error {
	rows, err := s.db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return fmt.Errorf("historian: probe %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &primaryKey); err != nil {
			return fmt.Errorf("historian: scan table_info(%s): %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl))
	if err != nil {
		return fmt.Errorf("historian: add column %s.%s: %w", table, column, err)
	}
	return nil
}

func (s *Store) setSchemaVersion(version int) error {
	_, err := s.db.Exec(
		`INSERT INTO schema_meta(key, value) VALUES('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", version),
	)
	return err
}

// SchemaVersion reports the schema version recorded by the last migration.
func (s *Store) SchemaVersion() (int, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version int
	if _, err := fmt.Sscanf(value, "%d", &version); err != nil {
		return 0, err
	}
	return version, nil
}
