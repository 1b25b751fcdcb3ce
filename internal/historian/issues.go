package historian

import (
	"database/sql"
	"time"
)

// Issue is one row of issue_tracking joined with its companion decision
// row (issue_decisions), the shape the alert engine's surfacing step reads
// and writes.
type Issue struct {
	Fingerprint  string
	ProbeID      string
	Severity     string
	Title        string
	Description  string
	EvidenceIDs  string
	FirstSeen    time.Time
	LastSeen     time.Time
	LastShown    *time.Time
	TimesShown   int
	TimesIgnored int
	Status       string

	SnoozedUntil *time.Time
	Suppressed   bool
}

// UpsertIssue records a proto-alert's sighting: first-seen is preserved on
// repeat sightings, last-seen is always updated, and times-shown is left
// untouched here — it only advances when the alert engine actually surfaces
// the issue (MarkShown), per the spec's dedup invariant that "last-seen is
// updated, times-shown is unchanged" on a bare upsert.
func (s *Store) UpsertIssue(fingerprint, probeID, severity, title, description, evidenceIDs string, seenAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO issue_tracking(fingerprint, probe_id, severity, title, description, evidence_ids, first_seen, last_seen, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'active')
		 ON CONFLICT(fingerprint) DO UPDATE SET
			severity = excluded.severity,
			title = excluded.title,
			description = excluded.description,
			evidence_ids = excluded.evidence_ids,
			last_seen = excluded.last_seen,
			status = CASE WHEN issue_tracking.status = 'resolved' THEN 'active' ELSE issue_tracking.status END`,
		fingerprint, probeID, severity, title, description, evidenceIDs, seenAt, seenAt,
	)
	return err
}

// MarkShown increments times_shown and records last_shown, called only
// when the alert is actually surfaced to the operator (cooldown elapsed,
// not snoozed, not suppressed).
func (s *Store) MarkShown(fingerprint string, shownAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE issue_tracking SET times_shown = times_shown + 1, last_shown = ? WHERE fingerprint = ?`,
		shownAt, fingerprint,
	)
	return err
}

// MarkIgnored increments times_ignored, called when the operator dismisses
// a surfaced alert without acting on it.
func (s *Store) MarkIgnored(fingerprint string) error {
	_, err := s.db.Exec(
		`UPDATE issue_tracking SET times_ignored = times_ignored + 1 WHERE fingerprint = ?`, fingerprint,
	)
	return err
}

// MarkResolved flags an issue resolved because its probe no longer emits
// it. The record is retained for audit, never deleted.
func (s *Store) MarkResolved(fingerprint string) error {
	_, err := s.db.Exec(`UPDATE issue_tracking SET status = 'resolved' WHERE fingerprint = ?`, fingerprint)
	return err
}

// Snooze records a temporary decision: the issue will not be surfaced again
// until until has passed.
func (s *Store) Snooze(fingerprint string, until time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO issue_decisions(fingerprint, snoozed_until, suppressed) VALUES (?, ?, 0)
		 ON CONFLICT(fingerprint) DO UPDATE SET snoozed_until = excluded.snoozed_until, decided_at = CURRENT_TIMESTAMP`,
		fingerprint, until,
	)
	return err
}

// Suppress records an indefinite decision: the issue never reappears until
// explicitly unsuppressed.
func (s *Store) Suppress(fingerprint string) error {
	_, err := s.db.Exec(
		`INSERT INTO issue_decisions(fingerprint, suppressed) VALUES (?, 1)
		 ON CONFLICT(fingerprint) DO UPDATE SET suppressed = 1, decided_at = CURRENT_TIMESTAMP`,
		fingerprint,
	)
	return err
}

// Unsuppress clears a suppression decision, restoring normal surfacing
// (subject to snooze and cooldown).
func (s *Store) Unsuppress(fingerprint string) error {
	_, err := s.db.Exec(`UPDATE issue_decisions SET suppressed = 0 WHERE fingerprint = ?`, fingerprint)
	return err
}

// ListActiveIssues returns up to limit issues currently in the "active"
// status, most recently seen first, used by the events-list IPC method.
func (s *Store) ListActiveIssues(limit int) ([]Issue, error) {
	rows, err := s.db.Query(
		`SELECT fingerprint, probe_id, severity, title, description, IFNULL(evidence_ids, ''), first_seen, last_seen, last_shown, times_shown, times_ignored, status
		 FROM issue_tracking WHERE status = 'active' ORDER BY last_seen DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Issue
	for rows.Next() {
		var issue Issue
		var lastShown sql.NullTime
		if err := rows.Scan(&issue.Fingerprint, &issue.ProbeID, &issue.Severity, &issue.Title, &issue.Description, &issue.EvidenceIDs,
			&issue.FirstSeen, &issue.LastSeen, &lastShown, &issue.TimesShown, &issue.TimesIgnored, &issue.Status); err != nil {
			return nil, err
		}
		if lastShown.Valid {
			issue.LastShown = &lastShown.Time
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

// GetIssue returns the current issue + decision state for a fingerprint.
func (s *Store) GetIssue(fingerprint string) (Issue, bool, error) {
	var issue Issue
	var lastShown sql.NullTime
	err := s.db.QueryRow(
		`SELECT fingerprint, probe_id, severity, title, description, IFNULL(evidence_ids, ''), first_seen, last_seen, last_shown, times_shown, times_ignored, status
		 FROM issue_tracking WHERE fingerprint = ?`, fingerprint,
	).Scan(&issue.Fingerprint, &issue.ProbeID, &issue.Severity, &issue.Title, &issue.Description, &issue.EvidenceIDs,
		&issue.FirstSeen, &issue.LastSeen, &lastShown, &issue.TimesShown, &issue.TimesIgnored, &issue.Status)
	if err == sql.ErrNoRows {
		return Issue{}, false, nil
	}
	if err != nil {
		return Issue{}, false, err
	}
	if lastShown.Valid {
		issue.LastShown = &lastShown.Time
	}

	var snoozedUntil sql.NullTime
	var suppressed sql.NullBool
	err = s.db.QueryRow(
		`SELECT snoozed_until, suppressed FROM issue_decisions WHERE fingerprint = ?`, fingerprint,
	).Scan(&snoozedUntil, &suppressed)
	if err != nil && err != sql.ErrNoRows {
		return Issue{}, false, err
	}
	if snoozedUntil.Valid {
		issue.SnoozedUntil = &snoozedUntil.Time
	}
	issue.Suppressed = suppressed.Valid && suppressed.Bool

	return issue, true, nil
}

// ShouldSurface applies the three surfacing gates from the spec: not
// suppressed, snoozed-until in the past, and cooldown elapsed since
// last-shown.
func (issue Issue) ShouldSurface(now time.Time, cooldown time.Duration) bool {
	if issue.Status != "active" {
		return false
	}
	if issue.Suppressed {
		return false
	}
	if issue.SnoozedUntil != nil && issue.SnoozedUntil.After(now) {
		return false
	}
	if issue.LastShown != nil && now.Sub(*issue.LastShown) < cooldown {
		return false
	}
	return true
}
