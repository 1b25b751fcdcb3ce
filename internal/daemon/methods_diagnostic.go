package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hostadvisord/hostadvisord/internal/ipc"
	"github.com/hostadvisord/hostadvisord/internal/mutation"
)

// registerDiagnosticMethods wires policy list/reload/eval, events
// show/list/clear, learning stats/recommendations/reset, plus the
// state-save/state-load pair the CLI surface names but the read-only
// method taxonomy doesn't (state_list covers the read-only summary;
// save/load are administrative actions, grouped here with the other
// diagnostic, non-case-producing methods).
func (d *Daemon) registerDiagnosticMethods() {
	d.server.RegisterMethod("policy_list", ipc.ClassDiagnostic, d.handlePolicyList)
	d.server.RegisterMethod("policy_reload", ipc.ClassDiagnostic, d.handlePolicyReload)
	d.server.RegisterMethod("policy_eval", ipc.ClassDiagnostic, d.handlePolicyEval)

	d.server.RegisterMethod("events_show", ipc.ClassDiagnostic, d.handleEventsShow)
	d.server.RegisterMethod("events_list", ipc.ClassDiagnostic, d.handleEventsList)
	d.server.RegisterMethod("events_clear", ipc.ClassDiagnostic, d.handleEventsClear)

	d.server.RegisterMethod("learning_stats", ipc.ClassDiagnostic, d.handleLearningStats)
	d.server.RegisterMethod("learning_recommendations", ipc.ClassDiagnostic, d.handleLearningRecommendations)
	d.server.RegisterMethod("learning_reset", ipc.ClassDiagnostic, d.handleLearningReset)

	d.server.RegisterMethod("state_save", ipc.ClassDiagnostic, d.handleStateSave)
	d.server.RegisterMethod("state_load", ipc.ClassDiagnostic, d.handleStateLoad)
}

// handlePolicyList reports the file-edit engine's current scope policy:
// the home-directory allowance plus any operator-configured extra
// patterns.
func (d *Daemon) handlePolicyList(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	policy := d.fileEdit.Policy()
	return map[string]interface{}{
		"home":        policy.Home,
		"extra_allow": policy.ExtraAllow,
	}, nil
}

// handlePolicyReload re-derives the scope policy's home directory (in
// case HOME changed under the daemon, e.g. after a user rename) and
// applies any extra_allow patterns supplied in params, pushing the result
// into the live file-edit engine without a restart.
func (d *Daemon) handlePolicyReload(_ context.Context, params map[string]interface{}) (interface{}, error) {
	extraAllow := d.fileEdit.Policy().ExtraAllow
	if raw, ok := params["extra_allow"].([]interface{}); ok {
		extraAllow = extraAllow[:0]
		for _, v := range raw {
			if s, ok := v.(string); ok {
				extraAllow = append(extraAllow, s)
			}
		}
	}
	policy := mutation.ScopePolicy{Home: homeDirOrEmpty(), ExtraAllow: extraAllow}
	d.fileEdit.SetPolicy(policy)
	return map[string]interface{}{
		"home":        policy.Home,
		"extra_allow": policy.ExtraAllow,
	}, nil
}

// handlePolicyEval checks whether a path would be writable under the
// current scope policy, without previewing or applying anything.
func (d *Daemon) handlePolicyEval(_ context.Context, params map[string]interface{}) (interface{}, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	policy := d.fileEdit.Policy()
	if err := policy.Check(path); err != nil {
		return map[string]interface{}{"allowed": false, "reason": err.Error()}, nil
	}
	return map[string]interface{}{"allowed": true}, nil
}

func (d *Daemon) handleEventsShow(_ context.Context, params map[string]interface{}) (interface{}, error) {
	fingerprint, err := stringParam(params, "fingerprint")
	if err != nil {
		return nil, err
	}
	issue, ok, err := d.historianStore.GetIssue(fingerprint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no issue with fingerprint %s", fingerprint)
	}
	return issue, nil
}

func (d *Daemon) handleEventsList(_ context.Context, params map[string]interface{}) (interface{}, error) {
	limit := 50
	if v, ok := params["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	issues, err := d.historianStore.ListActiveIssues(limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"issues": issues}, nil
}

// handleEventsClear dismisses one issue: suppress when requested, or a
// bare ignore (which still counts toward times_ignored) otherwise.
func (d *Daemon) handleEventsClear(_ context.Context, params map[string]interface{}) (interface{}, error) {
	fingerprint, err := stringParam(params, "fingerprint")
	if err != nil {
		return nil, err
	}
	suppress, _ := params["suppress"].(bool)
	if suppress {
		if err := d.alertEngine.Suppress(fingerprint); err != nil {
			return nil, err
		}
	} else {
		if err := d.alertEngine.Ignore(fingerprint); err != nil {
			return nil, err
		}
	}
	return map[string]interface{}{"cleared": true}, nil
}

func (d *Daemon) handleLearningStats(_ context.Context, params map[string]interface{}) (interface{}, error) {
	limit := 20
	if v, ok := params["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	patterns, err := d.historianStore.TopPatterns(limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"patterns": patterns}, nil
}

// handleLearningRecommendations surfaces the recipes the matcher is most
// likely to reach for, ranked by confidence, as a preview of what the
// advisor's popularity ranking would promote.
func (d *Daemon) handleLearningRecommendations(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	entries := d.recipeStore.ListIndex()
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Confidence > entries[j].Confidence })
	return map[string]interface{}{"recipes": entries}, nil
}

func (d *Daemon) handleLearningReset(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	if err := d.historianStore.ResetPatterns(); err != nil {
		return nil, err
	}
	return map[string]interface{}{"reset": true}, nil
}

// handleStateSave captures a JSON inventory snapshot supplied by the
// caller (hostctl state save reads it from the JSON file named by --file)
// into system_state_log.
func (d *Daemon) handleStateSave(_ context.Context, params map[string]interface{}) (interface{}, error) {
	inventory, ok := params["inventory"]
	if !ok {
		return nil, fmt.Errorf("state_save requires an \"inventory\" parameter")
	}
	data, err := json.Marshal(inventory)
	if err != nil {
		return nil, fmt.Errorf("marshal inventory: %w", err)
	}
	if err := d.historianStore.RecordSystemState(string(data)); err != nil {
		return nil, err
	}
	return map[string]interface{}{"saved_at": time.Now()}, nil
}

// handleStateLoad returns the most recently saved inventory snapshot.
func (d *Daemon) handleStateLoad(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	inventoryJSON, capturedAt, ok, err := d.historianStore.LatestSystemState()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no saved state found")
	}
	var inventory interface{}
	if err := json.Unmarshal([]byte(inventoryJSON), &inventory); err != nil {
		return nil, fmt.Errorf("decode saved inventory: %w", err)
	}
	return map[string]interface{}{
		"captured_at": capturedAt,
		"inventory":   inventory,
	}, nil
}
