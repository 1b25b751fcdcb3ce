package telemetry

import (
	"fmt"
	"time"
)

// MaintenanceResult reports what one maintenance pass removed, per spec
// §4.4 ("report the counts they removed").
type MaintenanceResult struct {
	AgeEvicted      int64
	CapacityEvicted int64
	Vacuumed        bool
}

// vacuumThresholdRows is the age-based-delete row count above which
// Maintain runs VACUUM to reclaim disk space.
const vacuumThresholdRows = 5000

// Maintain deletes samples older than retentionDays, then (if the number
// of distinct identities still exceeds maxKeys) evicts the
// least-recently-seen identities until the limit is met. Both phases are
// strictly mechanical: neither considers importance, only age/recency
// (spec §4.4 invariants).
func (s *Store) Maintain(now time.Time, retentionDays int, maxKeys int) (MaintenanceResult, error) {
	var result MaintenanceResult

	cutoff := now.AddDate(0, 0, -retentionDays).Unix()
	res, err := s.db.Exec(`DELETE FROM samples WHERE timestamp < ?`, cutoff)
	if err != nil {
		return result, fmt.Errorf("age-based retention delete: %w", err)
	}
	result.AgeEvicted, _ = res.RowsAffected()

	evicted, err := s.evictLeastRecentlySeen(maxKeys)
	if err != nil {
		return result, err
	}
	result.CapacityEvicted = evicted

	if result.AgeEvicted > vacuumThresholdRows {
		if _, err := s.db.Exec(`VACUUM`); err != nil {
			return result, fmt.Errorf("vacuum: %w", err)
		}
		result.Vacuumed = true
	}

	return result, nil
}

func (s *Store) evictLeastRecentlySeen(maxKeys int) (int64, error) {
	if maxKeys <= 0 {
		return 0, nil
	}

	var distinctCount int
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT name) FROM samples`).Scan(&distinctCount); err != nil {
		return 0, fmt.Errorf("count distinct identities: %w", err)
	}
	if distinctCount <= maxKeys {
		return 0, nil
	}

	overflow := distinctCount - maxKeys
	rows, err := s.db.Query(`
SELECT name FROM samples
GROUP BY name
ORDER BY MAX(timestamp) ASC
LIMIT ?`, overflow)
	if err != nil {
		return 0, fmt.Errorf("select eviction candidates: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return 0, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var totalEvicted int64
	for _, name := range names {
		res, err := s.db.Exec(`DELETE FROM samples WHERE name = ?`, name)
		if err != nil {
			return totalEvicted, fmt.Errorf("evict identity %s: %w", name, err)
		}
		n, _ := res.RowsAffected()
		totalEvicted += n
	}
	return totalEvicted, nil
}

// DataStatus classifies how much telemetry coverage exists for UX
// purposes (spec §4.4).
type DataStatus struct {
	Kind    string // NoData, Disabled, NotEnoughData, PartialWindow, Ok
	Minutes int    // set for NotEnoughData
	Hours   int    // set for PartialWindow and Ok
}

const (
	StatusNoData        = "NoData"
	StatusDisabled       = "Disabled"
	StatusNotEnoughData = "NotEnoughData"
	StatusPartialWindow = "PartialWindow"
	StatusOk            = "Ok"
)

// ClassifyDataStatus returns the DataStatus for name, given whether
// telemetry collection is enabled at all.
func (s *Store) ClassifyDataStatus(name string, enabled bool, now time.Time) (DataStatus, error) {
	if !enabled {
		return DataStatus{Kind: StatusDisabled}, nil
	}

	stats, err := s.WindowStats(name, Window30d, now)
	if err != nil {
		return DataStatus{}, err
	}
	if stats.SampleCount == 0 {
		return DataStatus{Kind: StatusNoData}, nil
	}

	covered := stats.LastSeen.Sub(stats.FirstSeen)
	if covered < 10*time.Minute {
		return DataStatus{Kind: StatusNotEnoughData, Minutes: int(covered.Minutes())}, nil
	}
	if covered < 24*time.Hour {
		return DataStatus{Kind: StatusPartialWindow, Hours: int(covered.Hours())}, nil
	}
	return DataStatus{Kind: StatusOk, Hours: int(covered.Hours())}, nil
}
