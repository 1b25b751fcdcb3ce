package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// RegisterDefaults populates reg with the built-in read-only and
// sensitive-read diagnostic tools. Mutating tools (file edits, service
// actions) are not registered here: they are only reachable through the
// mutation engine (internal/mutation), per spec §4.1.
func RegisterDefaults(reg *Registry) {
	reg.Register(Registered{
		Definition: Definition{
			Name:        "disk_usage",
			Description: "Report filesystem capacity for mounted volumes.",
			Security:    ReadOnly,
			LatencyHint: Fast,
		},
		Handler: diskUsageHandler,
	})

	reg.Register(Registered{
		Definition: Definition{
			Name:        "memory_usage",
			Description: "Report current memory and swap usage.",
			Security:    ReadOnly,
			LatencyHint: Fast,
		},
		Handler: memoryUsageHandler,
	})

	reg.Register(Registered{
		Definition: Definition{
			Name:        "uptime",
			Description: "Report system uptime and load averages.",
			Security:    ReadOnly,
			LatencyHint: Fast,
		},
		Handler: uptimeHandler,
	})

	reg.Register(Registered{
		Definition: Definition{
			Name:        "recent_installs",
			Description: "List packages installed or upgraded in the last N days.",
			Params:      []Param{{Name: "days", Type: ParamInteger, Required: false}},
			Security:    ReadOnly,
			LatencyHint: Medium,
		},
		Handler: recentInstallsHandler,
	})

	reg.Register(Registered{
		Definition: Definition{
			Name:        "journal_warnings",
			Description: "Summarize journald warnings/errors for a unit in the last N minutes.",
			Params: []Param{
				{Name: "service", Type: ParamString, Required: true},
				{Name: "minutes", Type: ParamInteger, Required: false},
			},
			Security:    SensitiveRead,
			LatencyHint: Medium,
		},
		Handler: journalWarningsHandler,
	})

	reg.Register(Registered{
		Definition: Definition{
			Name:        "service_status",
			Description: "Report a systemd unit's active and enabled state.",
			Params:      []Param{{Name: "service", Type: ParamString, Required: true}},
			Security:    ReadOnly,
			LatencyHint: Fast,
		},
		Handler: serviceStatusHandler,
	})

	reg.Register(Registered{
		Definition: Definition{
			Name:        "process_list",
			Description: "List running processes sorted by CPU usage.",
			Security:    SensitiveRead,
			LatencyHint: Fast,
		},
		Handler: processListHandler,
	})
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

func diskUsageHandler(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, string, error) {
	out, err := runCommand(ctx, "df", "-h")
	if err != nil {
		return nil, "", err
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return map[string]interface{}{"raw": out}, fmt.Sprintf("%d mounted filesystems reported.", max0(len(lines)-1)), nil
}

func memoryUsageHandler(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, string, error) {
	out, err := runCommand(ctx, "free", "-m")
	if err != nil {
		return nil, "", err
	}
	return map[string]interface{}{"raw": out}, "Memory and swap usage collected.", nil
}

func uptimeHandler(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, string, error) {
	out, err := runCommand(ctx, "uptime")
	if err != nil {
		return nil, "", err
	}
	return map[string]interface{}{"raw": strings.TrimSpace(out)}, strings.TrimSpace(out), nil
}

func recentInstallsHandler(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, error) {
	days := 7
	if v, ok := args["days"]; ok {
		if n, ok := toInt(v); ok {
			days = n
		}
	}
	since := time.Now().AddDate(0, 0, -days)

	logPath := "/var/log/dpkg.log"
	f, err := os.Open(logPath)
	if err != nil {
		return map[string]interface{}{"entries": []string{}}, fmt.Sprintf("No package log found at %s.", logPath), nil
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, " install ") && !strings.Contains(line, " upgrade ") {
			continue
		}
		ts, ok := parseDpkgTimestamp(line)
		if ok && ts.Before(since) {
			continue
		}
		entries = append(entries, line)
	}

	return map[string]interface{}{"entries": entries, "since_days": days},
		fmt.Sprintf("%d package install/upgrade events in the last %d days.", len(entries), days), nil
}

func parseDpkgTimestamp(line string) (time.Time, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02 15:04:05", fields[0]+" "+fields[1])
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func journalWarningsHandler(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, error) {
	service, _ := args["service"].(string)
	minutes := 60
	if v, ok := args["minutes"]; ok {
		if n, ok := toInt(v); ok {
			minutes = n
		}
	}

	out, err := runCommand(ctx, "journalctl", "-u", service, "--since", fmt.Sprintf("-%dmin", minutes), "-p", "warning", "--no-pager")
	if err != nil {
		return nil, "", err
	}
	lines := splitNonEmpty(out)
	return map[string]interface{}{"service": service, "minutes": minutes, "lines": lines},
		fmt.Sprintf("%d warning/error lines for %s in the last %d minutes.", len(lines), service, minutes), nil
}

func serviceStatusHandler(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, error) {
	service, _ := args["service"].(string)
	active, _ := runCommand(ctx, "systemctl", "is-active", service)
	enabled, _ := runCommand(ctx, "systemctl", "is-enabled", service)
	active = strings.TrimSpace(active)
	enabled = strings.TrimSpace(enabled)

	return map[string]interface{}{"service": service, "active": active, "enabled": enabled},
		fmt.Sprintf("%s is %s (%s at boot).", service, active, enabled), nil
}

func processListHandler(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, string, error) {
	out, err := runCommand(ctx, "ps", "-eo", "pid,comm,%cpu,%mem", "--sort=-%cpu")
	if err != nil {
		return nil, "", err
	}
	lines := splitNonEmpty(out)
	return map[string]interface{}{"raw": out}, fmt.Sprintf("%d processes reported.", max0(len(lines)-1)), nil
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
