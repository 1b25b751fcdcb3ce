package daemon

import (
	"context"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/hostadvisord/hostadvisord/internal/alertengine"
)

// probeInterval is how often the alert scheduler re-runs every wired
// probe. It is fixed and independent of the telemetry sample interval
// (15 s by default, so probes run half as often as samples); probes are
// cheap (a disk stat call, a systemctl query).
const probeInterval = 30 * time.Second

// retentionInterval is how often telemetry retention/eviction runs.
const retentionInterval = 1 * time.Hour

// runAlertScheduler polls every wired probe on a fixed interval, feeds the
// resulting proto-alerts through the alert engine's dedup/cooldown logic,
// and logs each surfaced issue and counts it in alertsSurfaced; no case
// file is written for surfaced issues.
//
// alertengine.JournalErrorBurstProbe and alertengine.ThermalProbe are
// intentionally not wired here: the former reads historian.Store's
// log_signatures table, which nothing in this daemon populates (no
// journal-ingestion component exists), and the latter needs a sensor
// reading source this module does not have. Wiring either would mean
// silently returning an always-empty probe, which is worse than leaving
// them out and documenting the gap.
func (d *Daemon) runAlertScheduler(ctx context.Context) {
	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runProbeTick(ctx)
		}
	}
}

func (d *Daemon) runProbeTick(ctx context.Context) {
	var protos []alertengine.ProtoAlert

	diskProtos, err := alertengine.DiskPressureProbe(alertengine.DiskPressureThreshold, diskUsageSnapshot)
	if err != nil {
		d.logger.Warn().Err(err).Msg("disk pressure probe failed")
	} else {
		protos = append(protos, diskProtos...)
	}

	unitProtos, err := alertengine.FailedUnitsProbe(ctx, listFailedUnits)
	if err != nil {
		d.logger.Warn().Err(err).Msg("failed units probe failed")
	} else {
		protos = append(protos, unitProtos...)
	}

	now := time.Now()
	alerts, err := d.alertEngine.Evaluate(now, protos)
	if err != nil {
		d.logger.Warn().Err(err).Msg("alert engine evaluate failed")
		return
	}

	currentFingerprints := make([]string, 0, len(protos))
	for _, p := range protos {
		currentFingerprints = append(currentFingerprints, alertengine.Fingerprint(p.ProbeID, p.PrincipalParam))
	}

	d.mu.Lock()
	previously := d.previouslyActive
	d.previouslyActive = currentFingerprints
	d.mu.Unlock()

	if err := d.alertEngine.ResolveMissing(previously, currentFingerprints); err != nil {
		d.logger.Warn().Err(err).Msg("alert engine resolve-missing failed")
	}

	for _, alert := range alerts {
		alertsSurfaced.Inc()
		d.logger.Info().
			Str("fingerprint", alert.Fingerprint).
			Str("severity", string(alert.Severity)).
			Str("title", alert.Title).
			Msg("alert surfaced")
	}
}

// runRetentionLoop runs telemetry retention maintenance on a fixed
// interval, mirroring the teacher's separation of sampling cadence from
// housekeeping cadence.
func (d *Daemon) runRetentionLoop(ctx context.Context) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := d.telemetryStore.Maintain(time.Now(), d.cfg.RetentionDays, d.cfg.MaxTelemetryKeys)
			if err != nil {
				d.logger.Warn().Err(err).Msg("telemetry retention maintenance failed")
				continue
			}
			if result.AgeEvicted > 0 || result.CapacityEvicted > 0 {
				d.logger.Info().
					Int64("age_evicted", result.AgeEvicted).
					Int64("capacity_evicted", result.CapacityEvicted).
					Bool("vacuumed", result.Vacuumed).
					Msg("telemetry retention maintenance completed")
			}
		}
	}
}

// diskUsageSnapshot enumerates real (non-virtual) mounted partitions and
// reports usage for each, the closure alertengine.DiskPressureProbe needs
// to turn into proto-alerts.
func diskUsageSnapshot() ([]*disk.UsageStat, error) {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}

	var stats []*disk.UsageStat
	for _, p := range partitions {
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			continue
		}
		stats = append(stats, usage)
	}
	return stats, nil
}

// listFailedUnits shells out to systemctl to list currently failed units,
// the same approach the tools catalog's service_status tool uses for
// reading unit state.
func listFailedUnits(ctx context.Context) ([]alertengine.FailedUnit, error) {
	out, err := exec.CommandContext(ctx, "systemctl", "list-units", "--state=failed", "--no-legend", "--plain").Output()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			// systemctl exits non-zero when there simply are no failed units
			// to list in some versions; treat any stdout we got as authoritative.
		} else {
			return nil, err
		}
	}

	var units []alertengine.FailedUnit
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		description := ""
		if len(fields) > 4 {
			description = strings.Join(fields[4:], " ")
		}
		units = append(units, alertengine.FailedUnit{Name: name, Description: description})
	}
	return units, nil
}

// homeDirOrEmpty resolves the invoking user's home directory for the
// mutation file-edit scope policy. An empty result disables the implicit
// home-directory allowance, leaving ScopePolicy.ExtraAllow as the only
// writable scope.
func homeDirOrEmpty() string {
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		return u.HomeDir
	}
	return os.Getenv("HOME")
}

// controlGID resolves the "hostadvisord" control group's GID, used to
// restrict IPC socket access the way the spec's "group-readable and
// -writable for a dedicated group membership" requires. Returns -1 (no
// restriction) when the group does not exist, e.g. in a dev environment.
func controlGID() int64 {
	g, err := user.LookupGroup("hostadvisord")
	if err != nil {
		return -1
	}
	gid, err := strconv.ParseInt(g.Gid, 10, 64)
	if err != nil {
		return -1
	}
	return gid
}
