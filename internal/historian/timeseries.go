package historian

import "time"

// historian roll-ups are coarser than the raw telemetry samples table.
// Each Record* method below is a single-row append executed directly on
// the store's handle, outside any caller-supplied transaction. The daemon
// does not call them; no loop writes these roll-ups.

// RecordBootSession logs a boot, used to anchor uptime-relative reasoning
// ("this has been flapping since the last three boots").
func (s *Store) RecordBootSession(bootedAt time.Time, kernelVersion string, cleanShutdown bool) error {
	clean := 0
	if cleanShutdown {
		clean = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO boot_sessions(booted_at, kernel_version, clean_shutdown) VALUES (?, ?, ?)`,
		bootedAt, kernelVersion, clean,
	)
	return err
}

// RecordCPUWindow appends a coarse CPU roll-up window.
func (s *Store) RecordCPUWindow(start, end time.Time, avgPercent, peakPercent float64) error {
	_, err := s.db.Exec(
		`INSERT INTO cpu_windows(window_start, window_end, avg_percent, peak_percent) VALUES (?, ?, ?, ?)`,
		start, end, avgPercent, peakPercent,
	)
	return err
}

// RecordMemoryWindow appends a coarse memory roll-up window.
func (s *Store) RecordMemoryWindow(start, end time.Time, avgBytes, peakBytes uint64) error {
	_, err := s.db.Exec(
		`INSERT INTO memory_windows(window_start, window_end, avg_bytes, peak_bytes) VALUES (?, ?, ?, ?)`,
		start, end, avgBytes, peakBytes,
	)
	return err
}

// RecordFilesystemWindow appends a filesystem capacity/growth/IO window for
// one mount.
func (s *Store) RecordFilesystemWindow(mount string, start time.Time, capacityBytes, usedBytes uint64, growthBytesPerDay, readBytesPerSec, writeBytesPerSec float64) error {
	_, err := s.db.Exec(
		`INSERT INTO filesystem_windows(mount_path, window_start, capacity_bytes, used_bytes, growth_bytes_per_day, read_bytes_per_sec, write_bytes_per_sec)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mount, start, capacityBytes, usedBytes, growthBytesPerDay, readBytesPerSec, writeBytesPerSec,
	)
	return err
}

// RecordNetworkWindow appends a per-interface throughput window.
func (s *Store) RecordNetworkWindow(iface string, start time.Time, rxBytesPerSec, txBytesPerSec float64, errorCount int) error {
	_, err := s.db.Exec(
		`INSERT INTO network_windows(iface, window_start, rx_bytes_per_sec, tx_bytes_per_sec, error_count) VALUES (?, ?, ?, ?, ?)`,
		iface, start, rxBytesPerSec, txBytesPerSec, errorCount,
	)
	return err
}

// RecordNetworkEvent logs a discrete network event (link down, new default
// route, etc.) rather than a throughput window.
func (s *Store) RecordNetworkEvent(iface, event string, occurredAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO network_events(iface, event, occurred_at) VALUES (?, ?, ?)`,
		iface, event, occurredAt,
	)
	return err
}

// RecordServiceRestart logs a systemd unit restart observed by the
// telemetry/alert loop, independent of any mutation the daemon itself
// performed.
func (s *Store) RecordServiceRestart(unit, reason string, restartedAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO service_restarts(unit, restarted_at, reason) VALUES (?, ?, ?)`,
		unit, restartedAt, reason,
	)
	return err
}

// RecordLogSignature upserts an occurrence count for a recurring journal
// message signature from one unit, the basis for the journal-error-burst
// alert probe.
func (s *Store) RecordLogSignature(unit, signature string, seenAt time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO log_signatures(unit, signature, occurrence_count, first_seen, last_seen) VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT(unit, signature) DO UPDATE SET occurrence_count = occurrence_count + 1, last_seen = excluded.last_seen`,
		unit, signature, seenAt, seenAt,
	)
	return err
}

// LogSignatureCount returns how many times a unit has logged a signature
// within the given window, used by the journal-error-burst probe
// (>= 20 in 10 minutes).
func (s *Store) LogSignatureCount(unit string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT IFNULL(SUM(occurrence_count), 0) FROM log_signatures WHERE unit = ? AND last_seen >= ?`,
		unit, since,
	).Scan(&count)
	return count, err
}

// RecordBaseline stores a labelled snapshot of a metric, used as the
// comparison point for baseline deltas.
func (s *Store) RecordBaseline(label, metric string, mean, stddev float64, sampleCount int) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO baselines(label, metric, mean, stddev, sample_count) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(label, metric) DO UPDATE SET mean = excluded.mean, stddev = excluded.stddev, sample_count = excluded.sample_count, captured_at = CURRENT_TIMESTAMP`,
		label, metric, mean, stddev, sampleCount,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil || id == 0 {
		var realID int64
		qerr := s.db.QueryRow(`SELECT id FROM baselines WHERE label = ? AND metric = ?`, label, metric).Scan(&realID)
		if qerr != nil {
			return 0, qerr
		}
		return realID, nil
	}
	return id, nil
}

// RecordBaselineDelta stores a rule-based comparison of an observed value
// against a baseline, flagged when the comparator judged it significant
// (consumed directly by health-score computation).
func (s *Store) RecordBaselineDelta(baselineID int64, observedValue, zScore float64, flagged bool) error {
	f := 0
	if flagged {
		f = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO baseline_deltas(baseline_id, observed_value, z_score, flagged) VALUES (?, ?, ?, ?)`,
		baselineID, observedValue, zScore, f,
	)
	return err
}

// RecordLLMUsageWindow appends an LLM token-usage roll-up. Created empty
// and populated only when an LLM translator is enabled; the table exists
// unconditionally so enabling that subsystem later needs no migration.
func (s *Store) RecordLLMUsageWindow(start, end time.Time, promptTokens, completionTokens, requestCount int) error {
	_, err := s.db.Exec(
		`INSERT INTO llm_usage_windows(window_start, window_end, prompt_tokens, completion_tokens, request_count) VALUES (?, ?, ?, ?, ?)`,
		start, end, promptTokens, completionTokens, requestCount,
	)
	return err
}
