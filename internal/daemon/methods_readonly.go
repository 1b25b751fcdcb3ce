package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/hostadvisord/hostadvisord/internal/advisor"
	"github.com/hostadvisord/hostadvisord/internal/ipc"
	"github.com/hostadvisord/hostadvisord/internal/telemetry"
)

// registerReadOnlyMethods wires the read-only half of the method
// taxonomy: status, facts, advice query, telemetry snapshot/history/trends,
// profile, knowledge search, reflection, state/capabilities/health summary.
func (d *Daemon) registerReadOnlyMethods() {
	d.server.RegisterMethod("ping", ipc.ClassReadOnly, d.handlePing)
	d.server.RegisterMethod("status", ipc.ClassReadOnly, d.handleStatus)
	d.server.RegisterMethod("capabilities", ipc.ClassReadOnly, d.handleCapabilities)
	d.server.RegisterMethod("health_summary", ipc.ClassReadOnly, d.handleHealthSummary)
	d.server.RegisterMethod("advice_query", ipc.ClassReadOnly, d.handleAdviceQuery)
	d.server.RegisterMethod("telemetry_snapshot", ipc.ClassReadOnly, d.handleTelemetrySnapshot)
	d.server.RegisterMethod("telemetry_history", ipc.ClassReadOnly, d.handleTelemetryHistory)
	d.server.RegisterMethod("telemetry_trends", ipc.ClassReadOnly, d.handleTelemetryTrends)
	d.server.RegisterMethod("profile_show", ipc.ClassReadOnly, d.handleProfileShow)
	d.server.RegisterMethod("state_list", ipc.ClassReadOnly, d.handleStateList)
	d.server.RegisterMethod("knowledge_search", ipc.ClassReadOnly, d.handleKnowledgeSearch)
}

func (d *Daemon) handlePing(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{"pong": true, "uptime_seconds": time.Since(d.startedAt).Seconds()}, nil
}

func (d *Daemon) handleStatus(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	today := d.caseRecorder.TodayCounters()
	return map[string]interface{}{
		"uptime_seconds":    time.Since(d.startedAt).Seconds(),
		"autonomy":          string(d.currentAutonomy()),
		"privileged":        d.cfg.Privileged,
		"telemetry_disabled": d.cfg.TelemetryDisabled,
		"cases_today":       today.CaseCount,
		"reliability_avg":   today.ReliabilityAverage(),
	}, nil
}

func (d *Daemon) handleCapabilities(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"api_version": ipc.DefaultAPIVersion,
		"tools":       d.toolRegistry.Catalog().Names(),
	}, nil
}

func (d *Daemon) handleHealthSummary(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	issues, err := d.historianStore.ListActiveIssues(20)
	if err != nil {
		return nil, fmt.Errorf("list active issues: %w", err)
	}
	return map[string]interface{}{
		"active_issue_count": len(issues),
		"issues":             issues,
	}, nil
}

// handleAdviceQuery runs the zero-rule advisor engine against the
// requested facts. With no rules registered (advice content is out of
// scope here, see internal/advisor), this always returns an empty list —
// the framework is exercised, its content is not.
func (d *Daemon) handleAdviceQuery(_ context.Context, params map[string]interface{}) (interface{}, error) {
	advice, err := d.advisorEngine.Evaluate(params)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"advice": advisor.SortByPopularity(advice)}, nil
}

func telemetryWindowParam(params map[string]interface{}) telemetry.Window {
	if raw, ok := params["window"].(string); ok {
		switch telemetry.Window(raw) {
		case telemetry.Window1h, telemetry.Window24h, telemetry.Window7d, telemetry.Window30d:
			return telemetry.Window(raw)
		}
	}
	return telemetry.Window24h
}

func (d *Daemon) handleTelemetrySnapshot(_ context.Context, params map[string]interface{}) (interface{}, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("telemetry_snapshot requires a \"name\" parameter")
	}
	stats, err := d.telemetryStore.WindowStats(name, telemetryWindowParam(params), time.Now())
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (d *Daemon) handleTelemetryHistory(_ context.Context, params map[string]interface{}) (interface{}, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("telemetry_history requires a \"name\" parameter")
	}
	now := time.Now()
	window := telemetryWindowParam(params)
	stats, err := d.telemetryStore.EnhancedWindowStats(name, window, now, d.cfg.TelemetryInterval.Seconds())
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (d *Daemon) handleTelemetryTrends(_ context.Context, params map[string]interface{}) (interface{}, error) {
	name, _ := params["name"].(string)
	if name == "" {
		return nil, fmt.Errorf("telemetry_trends requires a \"name\" parameter")
	}
	trend, err := d.telemetryStore.Trend24h(name, time.Now(), d.cfg.TelemetryInterval.Seconds())
	if err != nil {
		return nil, err
	}
	return trend, nil
}

func (d *Daemon) handleProfileShow(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	topCommands, err := d.historianStore.TopCommands(10)
	if err != nil {
		return nil, err
	}
	topPatterns, err := d.historianStore.TopPatterns(10)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"top_commands": topCommands,
		"top_patterns": topPatterns,
	}, nil
}

func (d *Daemon) handleStateList(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	return map[string]interface{}{
		"today":            d.caseRecorder.TodayCounters(),
		"recent_cases":     d.caseRecorder.ListToday(time.Now()),
		"last_case":        d.caseRecorder.LastSummary(),
		"last_failure_case": d.caseRecorder.LastFailureSummary(),
	}, nil
}

// handleKnowledgeSearch matches keywords against recipes the same way the
// ask pipeline does, without executing or recording a case — a read-only
// preview of what ask would reach for.
func (d *Daemon) handleKnowledgeSearch(_ context.Context, params map[string]interface{}) (interface{}, error) {
	keywords, _ := params["keywords"].([]interface{})
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if s, ok := k.(string); ok {
			kw = append(kw, s)
		}
	}
	matches := d.recipeStore.Match("general", kw)
	return map[string]interface{}{"matches": matches}, nil
}
