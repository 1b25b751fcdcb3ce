package historian

import (
	"database/sql"
	"time"
)

// SetPreference upserts a key/value user preference, tagging it with the
// caller-supplied valueType so readers can reconstruct it without guessing.
func (s *Store) SetPreference(key string, value string, valueType string) error {
	_, err := s.db.Exec(
		`INSERT INTO user_preferences(key, value, value_type, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, value_type = excluded.value_type, updated_at = CURRENT_TIMESTAMP`,
		key, value, valueType,
	)
	return err
}

// Preference is one row of user_preferences.
type Preference struct {
	Key       string
	Value     string
	ValueType string
	UpdatedAt time.Time
}

// GetPreference returns a stored preference, or ok=false if unset.
func (s *Store) GetPreference(key string) (Preference, bool, error) {
	var p Preference
	p.Key = key
	err := s.db.QueryRow(
		`SELECT value, value_type, updated_at FROM user_preferences WHERE key = ?`, key,
	).Scan(&p.Value, &p.ValueType, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return Preference{}, false, nil
	}
	if err != nil {
		return Preference{}, false, err
	}
	return p, true, nil
}

// RecordCommand logs one CLI invocation the operator ran.
func (s *Store) RecordCommand(command string, exitCode int, ledToAction bool) error {
	led := 0
	if ledToAction {
		led = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO command_usage(command, exit_code, led_to_action) VALUES (?, ?, ?)`,
		command, exitCode, led,
	)
	return err
}

// CommandUsageStats summarizes how often recent commands led to an action,
// the signal the advisor uses to judge which commands are worth surfacing
// as shortcuts.
type CommandUsageStats struct {
	Command       string
	InvocationCount int
	ActionCount   int
}

// TopCommands returns the most frequently used commands, most-used first.
func (s *Store) TopCommands(limit int) ([]CommandUsageStats, error) {
	rows, err := s.db.Query(
		`SELECT command, COUNT(*), SUM(led_to_action) FROM command_usage
		 GROUP BY command ORDER BY COUNT(*) DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandUsageStats
	for rows.Next() {
		var c CommandUsageStats
		if err := rows.Scan(&c.Command, &c.InvocationCount, &c.ActionCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordSystemState persists an inventory snapshot (a serialized JSON blob
// is expected by convention; the table itself is schema-agnostic about the
// payload shape).
func (s *Store) RecordSystemState(inventoryJSON string) error {
	_, err := s.db.Exec(`INSERT INTO system_state_log(inventory) VALUES (?)`, inventoryJSON)
	return err
}

// LatestSystemState returns the most recently captured inventory snapshot,
// used by the state-load IPC method to hand an operator back what
// state-save last recorded.
func (s *Store) LatestSystemState() (inventoryJSON string, capturedAt time.Time, ok bool, err error) {
	err = s.db.QueryRow(
		`SELECT inventory, captured_at FROM system_state_log ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&inventoryJSON, &capturedAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, false, nil
	}
	if err != nil {
		return "", time.Time{}, false, err
	}
	return inventoryJSON, capturedAt, true, nil
}

// StartSession records the start of a daemon/client session.
func (s *Store) StartSession(id string, startedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO session_metadata(id, started_at) VALUES (?, ?)`, id, startedAt,
	)
	return err
}

// EndSession records session end time and final counters.
func (s *Store) EndSession(id string, endedAt time.Time, caseCount, mutationCount int) error {
	_, err := s.db.Exec(
		`UPDATE session_metadata SET ended_at = ?, case_count = ?, mutation_count = ? WHERE id = ?`,
		endedAt, caseCount, mutationCount, id,
	)
	return err
}
