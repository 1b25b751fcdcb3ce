package historian

import (
	"database/sql"
	"time"
)

// LearningPattern is a recurring signal the daemon has detected, tracked by
// a stable signal key (e.g. "disk_full:/var" or "restart:nginx") with a
// confidence that rises each time the signal is confirmed and decays
// implicitly as confirmations thin out over time, mirroring the
// occurrence/confidence model the teacher's pattern detector uses for
// failure prediction.
type LearningPattern struct {
	ID                int64
	SignalKey         string
	Description       string
	Confidence        float64
	ConfirmationCount int
	FirstSeen         time.Time
	LastSeen          time.Time
}

// RecordPatternSignal upserts a learning pattern: a first sighting inserts
// a new row at the given confidence; a repeat sighting bumps the
// confirmation count and re-derives confidence as a simple recency-weighted
// average of the stored and observed confidence, nudging it toward the new
// observation rather than overwriting it outright.
func (s *Store) RecordPatternSignal(signalKey, description string, observedConfidence float64) (LearningPattern, error) {
	observedConfidence = clampConfidence(observedConfidence)

	existing, ok, err := s.GetPattern(signalKey)
	if err != nil {
		return LearningPattern{}, err
	}

	now := time.Now()
	if !ok {
		_, err := s.db.Exec(
			`INSERT INTO learning_patterns(signal_key, description, confidence, confirmation_count, first_seen, last_seen)
			 VALUES (?, ?, ?, 1, ?, ?)`,
			signalKey, description, observedConfidence, now, now,
		)
		if err != nil {
			return LearningPattern{}, err
		}
		return s.mustGetPattern(signalKey)
	}

	newConfidence := clampConfidence((existing.Confidence + observedConfidence) / 2)
	_, err = s.db.Exec(
		`UPDATE learning_patterns SET description = ?, confidence = ?, confirmation_count = confirmation_count + 1, last_seen = ?
		 WHERE signal_key = ?`,
		description, newConfidence, now, signalKey,
	)
	if err != nil {
		return LearningPattern{}, err
	}
	return s.mustGetPattern(signalKey)
}

// GetPattern returns the learning pattern for a signal key, if any.
func (s *Store) GetPattern(signalKey string) (LearningPattern, bool, error) {
	var p LearningPattern
	err := s.db.QueryRow(
		`SELECT id, signal_key, description, confidence, confirmation_count, first_seen, last_seen
		 FROM learning_patterns WHERE signal_key = ?`, signalKey,
	).Scan(&p.ID, &p.SignalKey, &p.Description, &p.Confidence, &p.ConfirmationCount, &p.FirstSeen, &p.LastSeen)
	if err == sql.ErrNoRows {
		return LearningPattern{}, false, nil
	}
	if err != nil {
		return LearningPattern{}, false, err
	}
	return p, true, nil
}

func (s *Store) mustGetPattern(signalKey string) (LearningPattern, error) {
	p, _, err := s.GetPattern(signalKey)
	return p, err
}

// TopPatterns returns the highest-confidence learning patterns, used by the
// advisor to prioritize which recurring signals are worth surfacing.
func (s *Store) TopPatterns(limit int) ([]LearningPattern, error) {
	rows, err := s.db.Query(
		`SELECT id, signal_key, description, confidence, confirmation_count, first_seen, last_seen
		 FROM learning_patterns ORDER BY confidence DESC, confirmation_count DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LearningPattern
	for rows.Next() {
		var p LearningPattern
		if err := rows.Scan(&p.ID, &p.SignalKey, &p.Description, &p.Confidence, &p.ConfirmationCount, &p.FirstSeen, &p.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ResetPatterns deletes every learning pattern, used by the learning-reset
// IPC method to let an operator discard accumulated signal history (e.g.
// after a hardware change invalidates prior confirmations).
func (s *Store) ResetPatterns() error {
	_, err := s.db.Exec(`DELETE FROM learning_patterns`)
	return err
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
