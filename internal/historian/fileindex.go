package historian

import (
	"database/sql"
	"time"
)

// FileIndexEntry is the last-known state of one indexed file, used to
// detect drift (config files changed outside the daemon's own mutation
// engine).
type FileIndexEntry struct {
	Path        string
	SizeBytes   int64
	Mode        uint32
	MTime       time.Time
	ContentHash string
	IndexedAt   time.Time
}

// IndexFile upserts the current state of a file and, if its content hash
// differs from what was previously indexed, appends a file_changes row
// describing the transition.
func (s *Store) IndexFile(path string, sizeBytes int64, mode uint32, mtime time.Time, contentHash string) error {
	existing, ok, err := s.getFileIndexEntry(path)
	if err != nil {
		return err
	}

	if ok && existing.ContentHash != contentHash {
		if _, err := s.db.Exec(
			`INSERT INTO file_changes(path, change_kind, previous_hash, new_hash) VALUES (?, 'modified', ?, ?)`,
			path, existing.ContentHash, contentHash,
		); err != nil {
			return err
		}
	} else if !ok {
		if _, err := s.db.Exec(
			`INSERT INTO file_changes(path, change_kind, previous_hash, new_hash) VALUES (?, 'created', NULL, ?)`,
			path, contentHash,
		); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(
		`INSERT INTO file_index(path, size_bytes, mode, mtime, content_hash, indexed_at) VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(path) DO UPDATE SET size_bytes = excluded.size_bytes, mode = excluded.mode, mtime = excluded.mtime, content_hash = excluded.content_hash, indexed_at = CURRENT_TIMESTAMP`,
		path, sizeBytes, mode, mtime, contentHash,
	)
	return err
}

// RemoveFromIndex records a deletion and drops the index entry.
func (s *Store) RemoveFromIndex(path string) error {
	existing, ok, err := s.getFileIndexEntry(path)
	if err != nil {
		return err
	}
	if ok {
		if _, err := s.db.Exec(
			`INSERT INTO file_changes(path, change_kind, previous_hash, new_hash) VALUES (?, 'deleted', ?, NULL)`,
			path, existing.ContentHash,
		); err != nil {
			return err
		}
	}
	_, err = s.db.Exec(`DELETE FROM file_index WHERE path = ?`, path)
	return err
}

func (s *Store) getFileIndexEntry(path string) (FileIndexEntry, bool, error) {
	var e FileIndexEntry
	err := s.db.QueryRow(
		`SELECT path, size_bytes, mode, mtime, content_hash, indexed_at FROM file_index WHERE path = ?`, path,
	).Scan(&e.Path, &e.SizeBytes, &e.Mode, &e.MTime, &e.ContentHash, &e.IndexedAt)
	if err == sql.ErrNoRows {
		return FileIndexEntry{}, false, nil
	}
	if err != nil {
		return FileIndexEntry{}, false, err
	}
	return e, true, nil
}

// FileChange is one row of file_changes.
type FileChange struct {
	Path         string
	ChangeKind   string
	PreviousHash string
	NewHash      string
	DetectedAt   time.Time
}

// RecentFileChanges returns the most recent changes for a path, newest
// first.
func (s *Store) RecentFileChanges(path string, limit int) ([]FileChange, error) {
	rows, err := s.db.Query(
		`SELECT path, change_kind, IFNULL(previous_hash, ''), IFNULL(new_hash, ''), detected_at
		 FROM file_changes WHERE path = ? ORDER BY detected_at DESC LIMIT ?`, path, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileChange
	for rows.Next() {
		var c FileChange
		if err := rows.Scan(&c.Path, &c.ChangeKind, &c.PreviousHash, &c.NewHash, &c.DetectedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HealthScoreEntry is one component's contribution to an overall health
// score computed at a point in time.
type HealthScoreEntry struct {
	ComputedAt     time.Time
	OverallScore   int
	Component      string
	ComponentScore int
	Notes          string
}

// RecordHealthScore appends one component's score row. Callers write one
// row per component per computation tick, all sharing the same
// OverallScore and ComputedAt so a single SELECT can reconstruct the full
// breakdown for a point in time.
func (s *Store) RecordHealthScore(e HealthScoreEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO health_scores(overall_score, component, component_score, notes) VALUES (?, ?, ?, ?)`,
		e.OverallScore, e.Component, e.ComponentScore, e.Notes,
	)
	return err
}

// LatestHealthScore returns the most recently computed breakdown, one row
// per component.
func (s *Store) LatestHealthScore() ([]HealthScoreEntry, error) {
	rows, err := s.db.Query(
		`SELECT computed_at, overall_score, component, component_score, IFNULL(notes, '')
		 FROM health_scores WHERE computed_at = (SELECT MAX(computed_at) FROM health_scores)`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HealthScoreEntry
	for rows.Next() {
		var e HealthScoreEntry
		if err := rows.Scan(&e.ComputedAt, &e.OverallScore, &e.Component, &e.ComponentScore, &e.Notes); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
