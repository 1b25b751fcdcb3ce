package telemetry

import (
	"database/sql"
	"fmt"
	"time"
)

// Window is one of the four fixed reporting windows spec §4.4 defines.
type Window string

const (
	Window1h  Window = "1h"
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
)

func (w Window) duration() time.Duration {
	switch w {
	case Window1h:
		return time.Hour
	case Window24h:
		return 24 * time.Hour
	case Window7d:
		return 7 * 24 * time.Hour
	case Window30d:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// SampleCount returns the number of samples recorded for name within
// window, counted from now.
func (s *Store) SampleCount(name string, window Window, now time.Time) (int, error) {
	since := now.Add(-window.duration()).Unix()
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM samples WHERE name = ? AND timestamp >= ?`, name, since).Scan(&count)
	return count, err
}

// Stats is per-identity statistics for one window (spec §4.4).
type Stats struct {
	SampleCount  int
	AvgCPU       float64
	PeakCPU      float64
	AvgMemBytes  float64
	PeakMemBytes uint64
	FirstSeen    time.Time
	LastSeen     time.Time
	EnoughData   bool
}

// WindowStats computes Stats for name over window. EnoughData is true iff
// the covered duration is at least 10 minutes or the sample count is at
// least 40 (spec §4.4).
func (s *Store) WindowStats(name string, window Window, now time.Time) (Stats, error) {
	since := now.Add(-window.duration()).Unix()

	row := s.db.QueryRow(`
SELECT COUNT(*), COALESCE(AVG(cpu_percent),0), COALESCE(MAX(cpu_percent),0),
       COALESCE(AVG(mem_bytes),0), COALESCE(MAX(mem_bytes),0),
       COALESCE(MIN(timestamp),0), COALESCE(MAX(timestamp),0)
FROM samples WHERE name = ? AND timestamp >= ?`, name, since)

	var st Stats
	var firstUnix, lastUnix int64
	var peakMem int64
	if err := row.Scan(&st.SampleCount, &st.AvgCPU, &st.PeakCPU, &st.AvgMemBytes, &peakMem, &firstUnix, &lastUnix); err != nil {
		return Stats{}, fmt.Errorf("window stats for %s: %w", name, err)
	}
	st.PeakMemBytes = uint64(peakMem)
	if firstUnix > 0 {
		st.FirstSeen = time.Unix(firstUnix, 0)
	}
	if lastUnix > 0 {
		st.LastSeen = time.Unix(lastUnix, 0)
	}

	covered := st.LastSeen.Sub(st.FirstSeen)
	st.EnoughData = covered >= 10*time.Minute || st.SampleCount >= 40

	return st, nil
}

// EnhancedStats adds CPU-time-total and distinct-PID exec count to Stats.
type EnhancedStats struct {
	Stats
	CPUTimeTotal float64 // seconds of CPU time, approximated as Σ cpu_percent × interval / 100
	ExecCount    int     // distinct PIDs observed, i.e. how many times the identity was (re)started
}

// EnhancedWindowStats computes EnhancedStats for name over window.
// intervalSeconds is the sampler tick interval used to convert cpu_percent
// readings into approximate CPU-seconds.
func (s *Store) EnhancedWindowStats(name string, window Window, now time.Time, intervalSeconds float64) (EnhancedStats, error) {
	base, err := s.WindowStats(name, window, now)
	if err != nil {
		return EnhancedStats{}, err
	}

	since := now.Add(-window.duration()).Unix()
	var sumCPU float64
	if err := s.db.QueryRow(`SELECT COALESCE(SUM(cpu_percent),0) FROM samples WHERE name = ? AND timestamp >= ?`, name, since).Scan(&sumCPU); err != nil {
		return EnhancedStats{}, fmt.Errorf("sum cpu_percent for %s: %w", name, err)
	}

	var execCount int
	if err := s.db.QueryRow(`SELECT COUNT(DISTINCT pid) FROM samples WHERE name = ? AND timestamp >= ?`, name, since).Scan(&execCount); err != nil {
		return EnhancedStats{}, fmt.Errorf("exec count for %s: %w", name, err)
	}

	return EnhancedStats{
		Stats:        base,
		CPUTimeTotal: sumCPU * intervalSeconds / 100,
		ExecCount:    execCount,
	}, nil
}

// TopEntry is one row of a top-N ranking.
type TopEntry struct {
	Name  string
	Value float64
}

// TopByCPUTime returns the top n identities by approximate CPU-time-total
// within window.
func (s *Store) TopByCPUTime(window Window, now time.Time, n int, intervalSeconds float64) ([]TopEntry, error) {
	since := now.Add(-window.duration()).Unix()
	rows, err := s.db.Query(`
SELECT name, COALESCE(SUM(cpu_percent),0) AS total
FROM samples WHERE timestamp >= ?
GROUP BY name ORDER BY total DESC LIMIT ?`, since, n)
	if err != nil {
		return nil, fmt.Errorf("top by cpu time: %w", err)
	}
	defer rows.Close()

	var out []TopEntry
	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, err
		}
		out = append(out, TopEntry{Name: name, Value: total * intervalSeconds / 100})
	}
	return out, rows.Err()
}

// TopByPeakRSS returns the top n identities by peak resident memory
// within window.
func (s *Store) TopByPeakRSS(window Window, now time.Time, n int) ([]TopEntry, error) {
	since := now.Add(-window.duration()).Unix()
	rows, err := s.db.Query(`
SELECT name, COALESCE(MAX(mem_bytes),0) AS peak
FROM samples WHERE timestamp >= ?
GROUP BY name ORDER BY peak DESC LIMIT ?`, since, n)
	if err != nil {
		return nil, fmt.Errorf("top by peak rss: %w", err)
	}
	defer rows.Close()

	var out []TopEntry
	for rows.Next() {
		var name string
		var peak float64
		if err := rows.Scan(&name, &peak); err != nil {
			return nil, err
		}
		out = append(out, TopEntry{Name: name, Value: peak})
	}
	return out, rows.Err()
}

// TopByExecCount returns the top n identities by distinct-PID exec count
// within window.
func (s *Store) TopByExecCount(window Window, now time.Time, n int) ([]TopEntry, error) {
	since := now.Add(-window.duration()).Unix()
	rows, err := s.db.Query(`
SELECT name, COUNT(DISTINCT pid) AS execs
FROM samples WHERE timestamp >= ?
GROUP BY name ORDER BY execs DESC LIMIT ?`, since, n)
	if err != nil {
		return nil, fmt.Errorf("top by exec count: %w", err)
	}
	defer rows.Close()

	var out []TopEntry
	for rows.Next() {
		var name string
		var execs float64
		if err := rows.Scan(&name, &execs); err != nil {
			return nil, err
		}
		out = append(out, TopEntry{Name: name, Value: execs})
	}
	return out, rows.Err()
}

// TopBySampleCount returns the top n identities by raw sample count
// within window.
func (s *Store) TopBySampleCount(window Window, now time.Time, n int) ([]TopEntry, error) {
	since := now.Add(-window.duration()).Unix()
	rows, err := s.db.Query(`
SELECT name, COUNT(*) AS cnt
FROM samples WHERE timestamp >= ?
GROUP BY name ORDER BY cnt DESC LIMIT ?`, since, n)
	if err != nil {
		return nil, fmt.Errorf("top by sample count: %w", err)
	}
	defer rows.Close()

	var out []TopEntry
	for rows.Next() {
		var name string
		var cnt float64
		if err := rows.Scan(&name, &cnt); err != nil {
			return nil, err
		}
		out = append(out, TopEntry{Name: name, Value: cnt})
	}
	return out, rows.Err()
}

// GlobalPeak is a single named-and-timestamped peak observation.
type GlobalPeak struct {
	Name      string
	Value     float64
	Timestamp time.Time
	PID       int32
}

// GlobalPeakCPU24h returns the single highest cpu_percent sample in the
// last 24 hours.
func (s *Store) GlobalPeakCPU24h(now time.Time) (GlobalPeak, bool, error) {
	since := now.Add(-24 * time.Hour).Unix()
	var p GlobalPeak
	var ts int64
	err := s.db.QueryRow(`
SELECT name, cpu_percent, timestamp, pid FROM samples
WHERE timestamp >= ? ORDER BY cpu_percent DESC LIMIT 1`, since).Scan(&p.Name, &p.Value, &ts, &p.PID)
	if err == sql.ErrNoRows {
		return GlobalPeak{}, false, nil
	}
	if err != nil {
		return GlobalPeak{}, false, err
	}
	p.Timestamp = time.Unix(ts, 0)
	return p, true, nil
}

// GlobalPeakMem24h returns the single highest mem_bytes sample in the
// last 24 hours.
func (s *Store) GlobalPeakMem24h(now time.Time) (GlobalPeak, bool, error) {
	since := now.Add(-24 * time.Hour).Unix()
	var p GlobalPeak
	var ts int64
	err := s.db.QueryRow(`
SELECT name, mem_bytes, timestamp, pid FROM samples
WHERE timestamp >= ? ORDER BY mem_bytes DESC LIMIT 1`, since).Scan(&p.Name, &p.Value, &ts, &p.PID)
	if err == sql.ErrNoRows {
		return GlobalPeak{}, false, nil
	}
	if err != nil {
		return GlobalPeak{}, false, err
	}
	p.Timestamp = time.Unix(ts, 0)
	return p, true, nil
}

// Trend compares the current 24h window to the preceding 24h window.
type Trend struct {
	HasData      bool
	CPUTimeDelta float64
	PeakRSSDelta float64
}

// Trend24h returns Trend for name, with HasData false if either side of
// the comparison has no samples (spec §4.4).
func (s *Store) Trend24h(name string, now time.Time, intervalSeconds float64) (Trend, error) {
	cur, err := s.EnhancedWindowStats(name, Window24h, now, intervalSeconds)
	if err != nil {
		return Trend{}, err
	}
	prevStart, prevEnd := now.Add(-48*time.Hour).Unix(), now.Add(-24*time.Hour).Unix()
	var prevCount int
	var prevSumCPU float64
	var prevPeakMem int64
	if err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(cpu_percent),0), COALESCE(MAX(mem_bytes),0)
FROM samples WHERE name = ? AND timestamp >= ? AND timestamp < ?`, name, prevStart, prevEnd).Scan(&prevCount, &prevSumCPU, &prevPeakMem); err != nil {
		return Trend{}, fmt.Errorf("previous 24h window for %s: %w", name, err)
	}

	if cur.SampleCount == 0 || prevCount == 0 {
		return Trend{HasData: false}, nil
	}

	return Trend{
		HasData:      true,
		CPUTimeDelta: cur.CPUTimeTotal - prevSumCPU*intervalSeconds/100,
		PeakRSSDelta: float64(cur.PeakMemBytes) - float64(prevPeakMem),
	}, nil
}
