package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/hostadvisord/hostadvisord/internal/casefile"
	"github.com/hostadvisord/hostadvisord/internal/evidence"
	"github.com/hostadvisord/hostadvisord/internal/historian"
	"github.com/hostadvisord/hostadvisord/internal/ipc"
	"github.com/hostadvisord/hostadvisord/internal/mutation/fileedit"
	"github.com/hostadvisord/hostadvisord/internal/mutation/serviceaction"
)

// registerMutatingMethods wires apply_action, perform_update,
// rollback_action, and rollback_last: the mutating half of the method
// taxonomy. No handler here touches the host directly: mutation goes
// through the fileedit/serviceaction engines. apply_action records an
// action_history row, and applies that create a rollback bundle also get a
// repair_history row referencing the case, which rollback_last (and so
// `hostctl doctor rollback`) reports. rollback_action restores from the
// case's rollback bundle.
func (d *Daemon) registerMutatingMethods() {
	d.server.RegisterMethod("preview_file_edit", ipc.ClassMutating, d.handlePreviewFileEdit)
	d.server.RegisterMethod("preview_service_action", ipc.ClassMutating, d.handlePreviewServiceAction)
	d.server.RegisterMethod("apply_action", ipc.ClassMutating, d.handleApplyAction)
	d.server.RegisterMethod("rollback_action", ipc.ClassMutating, d.handleRollbackAction)
	d.server.RegisterMethod("rollback_last", ipc.ClassMutating, d.handleRollbackLast)
	d.server.RegisterMethod("perform_update", ipc.ClassMutating, d.handlePerformUpdate)
}

func stringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return v, nil
}

func (d *Daemon) handlePreviewFileEdit(_ context.Context, params map[string]interface{}) (interface{}, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return nil, err
	}
	mode, err := stringParam(params, "mode")
	if err != nil {
		return nil, err
	}
	fp := fileedit.Params{
		Line:      stringOrEmpty(params, "line"),
		Key:       stringOrEmpty(params, "key"),
		Value:     stringOrEmpty(params, "value"),
		Separator: stringOrEmpty(params, "separator"),
	}
	preview := d.fileEdit.Preview(path, fileedit.Mode(mode), fp)
	return preview, nil
}

func (d *Daemon) handlePreviewServiceAction(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	service, err := stringParam(params, "service")
	if err != nil {
		return nil, err
	}
	operation, err := stringParam(params, "operation")
	if err != nil {
		return nil, err
	}
	return d.serviceAction.Preview(ctx, service, serviceaction.Operation(operation))
}

// handleApplyAction dispatches by a request-supplied "kind" (file_edit or
// service_action) onto the matching mutation engine's Apply, then records
// the outcome in action_history. The case lock serializes concurrent
// applies against the same case id (spec §5).
func (d *Daemon) handleApplyAction(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	kind, err := stringParam(params, "kind")
	if err != nil {
		return nil, err
	}
	caseID, err := stringParam(params, "case_id")
	if err != nil {
		return nil, err
	}

	unlock := d.caseLocks.Lock(caseID)
	defer unlock()

	start := time.Now()
	var result interface{}
	var actionKind, target, outcome string

	switch kind {
	case "file_edit":
		path, perr := stringParam(params, "path")
		if perr != nil {
			return nil, perr
		}
		mode, perr := stringParam(params, "mode")
		if perr != nil {
			return nil, perr
		}
		fp := fileedit.Params{
			Line:      stringOrEmpty(params, "line"),
			Key:       stringOrEmpty(params, "key"),
			Value:     stringOrEmpty(params, "value"),
			Separator: stringOrEmpty(params, "separator"),
		}
		applyResult, applyErr := d.fileEdit.Apply(caseID, path, fileedit.Mode(mode), fp)
		actionKind, target = "file_edit", path
		if applyErr != nil {
			outcome = "failed"
			d.recordAction(caseID, actionKind, target, outcome, start, "")
			return nil, applyErr
		}
		outcome = "succeeded"
		result = applyResult
		d.recordRepair(caseID, actionKind, fmt.Sprintf("file edit applied to %s, rollback bundle retained", path))

	case "service_action":
		service, perr := stringParam(params, "service")
		if perr != nil {
			return nil, perr
		}
		operation, perr := stringParam(params, "operation")
		if perr != nil {
			return nil, perr
		}
		previewID, perr := stringParam(params, "preview_id")
		if perr != nil {
			return nil, perr
		}
		confirmation, perr := stringParam(params, "confirmation")
		if perr != nil {
			return nil, perr
		}
		applyResult, applyErr := d.serviceAction.Apply(ctx, caseID, service, serviceaction.Operation(operation), previewID, confirmation)
		actionKind, target = "service_action:"+operation, service
		if applyErr != nil {
			outcome = "failed"
			d.recordAction(caseID, actionKind, target, outcome, start, "")
			return nil, applyErr
		}
		outcome = "succeeded"
		result = applyResult
		d.recordRepair(caseID, actionKind, fmt.Sprintf("service %s %s applied, rollback bundle retained", operation, service))

	default:
		return nil, fmt.Errorf("unknown apply_action kind %q", kind)
	}

	d.recordAction(caseID, actionKind, target, outcome, start, "")
	return result, nil
}

func (d *Daemon) recordAction(caseID, kind, target, outcome string, start time.Time, evidenceID string) {
	if err := d.historianStore.RecordAction(historian.ActionRecord{
		CaseID:     caseID,
		Kind:       kind,
		Target:     target,
		Outcome:    outcome,
		DurationMS: time.Since(start).Milliseconds(),
		EvidenceID: evidenceID,
	}); err != nil {
		d.logger.Warn().Err(err).Str("case_id", caseID).Msg("failed to record action history")
	}
}

// recordRepair logs a durable case_id -> rollback bundle reference for
// every mutation that produced one, per spec §4.5: every mutation that
// creates a rollback bundle must be traceable back to it from repair
// history alone, without the client resupplying anything.
func (d *Daemon) recordRepair(caseID, mutationID, summary string) {
	if _, err := d.historianStore.RecordRepair(historian.RepairRecord{
		CaseID:     caseID,
		MutationID: mutationID,
		Result:     "succeeded",
		Summary:    summary,
	}, nil); err != nil {
		d.logger.Warn().Err(err).Str("case_id", caseID).Msg("failed to record repair history")
	}
}

// handleRollbackAction reverses one previously-applied mutation by kind
// and case id alone: both engines resolve path/backup/hash or
// prior-active/prior-enabled state from the case's rollback bundle, never
// from caller-supplied parameters (spec §4.3: rollback reads only from
// the bundle). Rollback is idempotent per engine invariant: a second call
// against an already-restored target is a no-op.
func (d *Daemon) handleRollbackAction(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	kind, err := stringParam(params, "kind")
	if err != nil {
		return nil, err
	}
	caseID, err := stringParam(params, "case_id")
	if err != nil {
		return nil, err
	}

	switch kind {
	case "file_edit":
		if err := d.fileEdit.Rollback(caseID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"rolled_back": true}, nil

	case "service_action":
		if err := d.serviceAction.Rollback(ctx, caseID); err != nil {
			return nil, err
		}
		return map[string]interface{}{"rolled_back": true}, nil

	default:
		return nil, fmt.Errorf("unknown rollback_action kind %q", kind)
	}
}

// handleRollbackLast resolves the most recent case from the case recorder
// and reports it so the client can retry rollback_action with that case's
// recorded parameters; the daemon does not retain enough per-mutation
// detail in casefile.Summary to replay a rollback blind, so this method's
// contract is "point the operator at the last case" rather than "silently
// rewind it".
func (d *Daemon) handleRollbackLast(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	last := d.caseRecorder.LastSummary()
	if last == nil {
		return nil, fmt.Errorf("no case recorded yet")
	}
	repairs, err := d.historianStore.RepairsForCase(last.CaseID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"case":    last,
		"repairs": repairs,
	}, nil
}

// handlePerformUpdate maps the abstract "perform an update" request onto
// the recipe data model: look up the recipe named by recipe_id, require it
// to be active, execute its plan steps through the tool executor up to the
// first mutating step (which ends the run with a partial outcome), record
// the outcome,
// and write a case file (spec §3 "Recipe", §4.2 evidence collector,
// §4.7 case recorder).
func (d *Daemon) handlePerformUpdate(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	recipeID, err := stringParam(params, "recipe_id")
	if err != nil {
		return nil, err
	}

	r, ok := d.recipeStore.Get(recipeID)
	if !ok {
		return nil, fmt.Errorf("recipe %s not found", recipeID)
	}
	if !r.Matchable() {
		return nil, fmt.Errorf("recipe %s is not active (status=%s)", recipeID, r.Status)
	}

	caseID := casefile.NewCaseID()
	var evidenceIDs []string
	var planSteps []casefile.ToolPlanStep
	outcome := casefile.OutcomeAnswered
	collector := evidence.NewCollector()

	for _, step := range r.ToolPlanTemplate {
		if step.Mutating {
			outcome = casefile.OutcomePartial
			break
		}
		args := make(map[string]interface{}, len(step.ParameterTemplates))
		for k, v := range step.ParameterTemplates {
			args[k] = v
		}
		tr := d.toolExecutor.Execute(ctx, step.Name, args)
		tr.EvidenceID = collector.Add(tr)
		evidenceIDs = append(evidenceIDs, tr.EvidenceID)
		planSteps = append(planSteps, casefile.ToolPlanStep{Name: step.Name, Parameters: args})
		if !tr.Success {
			outcome = casefile.OutcomePartial
		}
	}

	reliability := 100
	if outcome != casefile.OutcomeAnswered {
		reliability = 40
	}

	if err := d.caseRecorder.Write(casefile.Case{
		ID:              caseID,
		CreatedAt:       time.Now(),
		OriginalRequest: fmt.Sprintf("perform_update recipe=%s", recipeID),
		Intent:          r.IntentPattern.TypeTag,
		ToolPlan:        planSteps,
		Answer:          fmt.Sprintf("Executed %d step(s) from recipe %s.", len(planSteps), recipeID),
		Reliability:     reliability,
		Outcome:         outcome,
	}); err != nil {
		d.logger.Warn().Err(err).Str("case_id", caseID).Msg("failed to write case file")
	} else {
		casesRecorded.Inc()
	}

	if err := d.recipeStore.RecordOutcome(recipeID, outcome == casefile.OutcomeAnswered); err != nil {
		d.logger.Warn().Err(err).Str("recipe_id", recipeID).Msg("failed to record recipe outcome")
	}

	return map[string]interface{}{
		"case_id":      caseID,
		"outcome":      outcome,
		"evidence_ids": evidenceIDs,
	}, nil
}

func stringOrEmpty(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return v
}
