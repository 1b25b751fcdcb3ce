package alertengine

import (
	"context"
	"fmt"
	"time"

	"github.com/hostadvisord/hostadvisord/internal/historian"
	"github.com/shirou/gopsutil/v4/disk"
)

// DiskPressureThreshold is the default usage ceiling (percent used) at or
// above which a mount is considered under pressure.
const DiskPressureThreshold = 90.0

// DiskUsageFunc abstracts disk usage lookups for testability, mirroring
// the injectable-collector-function idiom used throughout this module's
// telemetry and mutation packages.
type DiskUsageFunc func() ([]*disk.UsageStat, error)

// DiskPressureProbe flags any mount at or above thresholdPercent used.
func DiskPressureProbe(thresholdPercent float64, usage DiskUsageFunc) ([]ProtoAlert, error) {
	stats, err := usage()
	if err != nil {
		return nil, err
	}

	var out []ProtoAlert
	for _, stat := range stats {
		if stat.UsedPercent < thresholdPercent {
			continue
		}
		out = append(out, ProtoAlert{
			ProbeID:        "disk-pressure",
			PrincipalParam: stat.Path,
			Severity:       diskSeverity(stat.UsedPercent),
			Title:          fmt.Sprintf("%s is %.0f%% full", stat.Path, stat.UsedPercent),
			Description:    fmt.Sprintf("Mount %s has %.0f%% of its capacity used, at or above the %.0f%% pressure threshold.", stat.Path, stat.UsedPercent, thresholdPercent),
		})
	}
	return out, nil
}

func diskSeverity(usedPercent float64) Severity {
	if usedPercent >= 97 {
		return SeverityCritical
	}
	return SeverityWarning
}

// FailedUnit is one systemd unit reported in the failed state.
type FailedUnit struct {
	Name        string
	Description string
}

// FailedUnitsFunc abstracts the systemctl query for testability.
type FailedUnitsFunc func(ctx context.Context) ([]FailedUnit, error)

// FailedUnitsProbe flags every systemd unit currently in the failed state.
func FailedUnitsProbe(ctx context.Context, list FailedUnitsFunc) ([]ProtoAlert, error) {
	units, err := list(ctx)
	if err != nil {
		return nil, err
	}

	var out []ProtoAlert
	for _, u := range units {
		out = append(out, ProtoAlert{
			ProbeID:        "failed-units",
			PrincipalParam: u.Name,
			Severity:       SeverityCritical,
			Title:          fmt.Sprintf("%s failed", u.Name),
			Description:    fmt.Sprintf("systemd reports %s in the failed state: %s", u.Name, u.Description),
		})
	}
	return out, nil
}

// ThermalReading is one sensor's current temperature in Celsius.
type ThermalReading struct {
	SensorName  string
	Celsius     float64
	Throttling  bool
}

// ThermalReadingsFunc abstracts sensor enumeration for testability.
type ThermalReadingsFunc func(ctx context.Context) ([]ThermalReading, error)

// ThermalProbe flags sensors over thresholdCelsius, or any sensor the
// kernel reports as actively throttling regardless of its raw reading.
func ThermalProbe(ctx context.Context, thresholdCelsius float64, readings ThermalReadingsFunc) ([]ProtoAlert, error) {
	sensors, err := readings(ctx)
	if err != nil {
		return nil, err
	}

	var out []ProtoAlert
	for _, r := range sensors {
		if !r.Throttling && r.Celsius < thresholdCelsius {
			continue
		}
		severity := SeverityWarning
		title := fmt.Sprintf("%s running hot (%.1f°C)", r.SensorName, r.Celsius)
		if r.Throttling {
			severity = SeverityCritical
			title = fmt.Sprintf("%s is thermal throttling (%.1f°C)", r.SensorName, r.Celsius)
		}
		out = append(out, ProtoAlert{
			ProbeID:        "thermal",
			PrincipalParam: r.SensorName,
			Severity:       severity,
			Title:          title,
			Description:    fmt.Sprintf("Sensor %s reads %.1f°C (threshold %.1f°C).", r.SensorName, r.Celsius, thresholdCelsius),
		})
	}
	return out, nil
}

// JournalErrorBurstThreshold and Window are the spec's default burst
// parameters: >= 20 errors from one unit within a 10 minute window.
const (
	JournalErrorBurstThreshold = 20
	JournalErrorBurstWindow    = 10 * time.Minute
)

// JournalErrorBurstProbe flags units whose error-signature count in
// historian's log_signatures table has crossed the burst threshold within
// the trailing window.
func JournalErrorBurstProbe(store *historian.Store, now time.Time, units []string) ([]ProtoAlert, error) {
	var out []ProtoAlert
	since := now.Add(-JournalErrorBurstWindow)

	for _, unit := range units {
		count, err := store.LogSignatureCount(unit, since)
		if err != nil {
			return nil, err
		}
		if count < JournalErrorBurstThreshold {
			continue
		}
		out = append(out, ProtoAlert{
			ProbeID:        "journal-error-burst",
			PrincipalParam: unit,
			Severity:       SeverityWarning,
			Title:          fmt.Sprintf("%s is logging errors rapidly", unit),
			Description:    fmt.Sprintf("%s logged %d errors in the last %s.", unit, count, JournalErrorBurstWindow),
		})
	}
	return out, nil
}
