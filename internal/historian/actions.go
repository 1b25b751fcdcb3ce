package historian

import "time"

// ActionRecord is one row of action history: a mutation attempted against
// the host, its outcome, and (if the operation produced one) the evidence
// identifier that documents it.
type ActionRecord struct {
	CaseID        string
	Kind          string
	Target        string
	Outcome       string
	DurationMS    int64
	AffectedItems string
	EvidenceID    string
	CreatedAt     time.Time
}

// RecordAction appends one action-history row. Every mutation that succeeds
// against the host is logged here regardless of whether it produced a
// rollback bundle (repair history, below, is the narrower set that did).
func (s *Store) RecordAction(r ActionRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO action_history(case_id, kind, target, outcome, duration_ms, affected_items, evidence_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.CaseID, r.Kind, r.Target, r.Outcome, r.DurationMS, r.AffectedItems, nullableString(r.EvidenceID),
	)
	return err
}

// RecentActions returns up to limit action-history rows for a case, newest
// first.
func (s *Store) RecentActions(caseID string, limit int) ([]ActionRecord, error) {
	rows, err := s.db.Query(
		`SELECT case_id, kind, target, outcome, duration_ms, affected_items, IFNULL(evidence_id, ''), created_at
		 FROM action_history WHERE case_id = ? ORDER BY created_at DESC LIMIT ?`,
		caseID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActionRecord
	for rows.Next() {
		var r ActionRecord
		var affected *string
		if err := rows.Scan(&r.CaseID, &r.Kind, &r.Target, &r.Outcome, &r.DurationMS, &affected, &r.EvidenceID, &r.CreatedAt); err != nil {
			return nil, err
		}
		if affected != nil {
			r.AffectedItems = *affected
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RepairRecord is one row of repair history: a mutation that created a
// rollback bundle, and the outcome of applying it.
type RepairRecord struct {
	ID        int64
	CaseID    string
	MutationID string
	Result    string
	Summary   string
	CreatedAt time.Time
}

// RepairMetric is a single before/after measurement attached to a repair.
type RepairMetric struct {
	Metric string
	Before float64
	After  float64
}

// RecordRepair inserts a repair-history row plus its before/after metrics in
// one transaction and returns the generated repair id.
func (s *Store) RecordRepair(r RepairRecord, metrics []RepairMetric) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO repair_history(case_id, mutation_id, result, summary) VALUES (?, ?, ?, ?)`,
		r.CaseID, r.MutationID, r.Result, r.Summary,
	)
	if err != nil {
		return 0, err
	}
	repairID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`INSERT INTO repair_metrics(repair_id, metric, before_value, after_value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.Exec(repairID, m.Metric, m.Before, m.After); err != nil {
			return 0, err
		}
	}

	return repairID, tx.Commit()
}

// RepairsForCase returns all repair-history rows recorded for a case,
// oldest first, used by rollback replay and case-file audits.
func (s *Store) RepairsForCase(caseID string) ([]RepairRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, case_id, mutation_id, result, summary, created_at FROM repair_history WHERE case_id = ? ORDER BY created_at ASC`,
		caseID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RepairRecord
	for rows.Next() {
		var r RepairRecord
		if err := rows.Scan(&r.ID, &r.CaseID, &r.MutationID, &r.Result, &r.Summary, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
