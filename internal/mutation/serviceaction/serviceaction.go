// Package serviceaction implements the service-action mutation class from
// spec §4.3: probe/preview/apply/rollback for systemd unit start, stop,
// restart, enable, and disable, gated by a risk-scored confirmation
// phrase. The preview-id/confirmation replay-protection idiom is adapted
// from the teacher's approval.Store (internal/ai/approval/store.go);
// risk scoring lives in internal/mutation/risk.
package serviceaction

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hostadvisord/hostadvisord/internal/mutation"
	"github.com/hostadvisord/hostadvisord/internal/mutation/risk"
)

// Operation is one of the five service-action verbs.
type Operation string

const (
	Start   Operation = "start"
	Stop    Operation = "stop"
	Restart Operation = "restart"
	Enable  Operation = "enable"
	Disable Operation = "disable"
)

// Probe reports a unit's current state.
type Probe struct {
	Service     string
	Exists      bool
	Active      bool
	Enabled     bool
	Description string
	LastFailure string
}

// Preview is what preview() hands back: expected post-state, risk level,
// and the confirmation phrase apply() must echo back.
type Preview struct {
	ID                  string
	Service             string
	Operation           Operation
	CurrentActive       bool
	CurrentEnabled      bool
	ExpectedActive      bool
	ExpectedEnabled     bool
	Risk                risk.Level
	ConfirmationPhrase  string
	createdAt           time.Time
}

// ApplyResult records what apply actually did, including the state
// captured for rollback.
type ApplyResult struct {
	CaseID       string
	Service      string
	Operation    Operation
	PriorActive  bool
	PriorEnabled bool
}

// Engine runs probe/preview/apply/rollback for systemd units via
// systemctl. It never executes an apply without a matching preview and an
// exactly-matching confirmation phrase (spec §4.3 invariants 1-2);
// previews do not expire.
type Engine struct {
	locks   mutation.CaseLocks
	run     func(ctx context.Context, args ...string) (string, error)
	bundles *mutation.BundleStore

	mu       sync.Mutex
	previews map[string]Preview // preview id -> preview
}

// serviceActionMetaFile is the bundle-relative name under which Apply
// persists the ApplyResult that Rollback later reads back by case id
// alone.
const serviceActionMetaFile = "serviceaction.json"

// NewEngine creates a service-action engine that shells out to the real
// systemctl binary, with rollback bundles rooted at bundles.
func NewEngine(bundles *mutation.BundleStore) *Engine {
	return &Engine{previews: make(map[string]Preview), run: runSystemctl, bundles: bundles}
}

// NewEngineWithRunner creates an engine that delegates systemctl
// invocations to run, for tests that simulate unit state without a real
// systemd instance.
func NewEngineWithRunner(run func(ctx context.Context, args ...string) (string, error), bundles *mutation.BundleStore) *Engine {
	return &Engine{previews: make(map[string]Preview), run: run, bundles: bundles}
}

func runSystemctl(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "systemctl", args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Probe reports service's current active/enabled state. systemctl exits
// non-zero for inactive/disabled units, so a command error here does not
// necessarily mean the probe itself failed.
func (e *Engine) Probe(ctx context.Context, service string) (Probe, error) {
	p := Probe{Service: service}

	active, _ := e.run(ctx, "is-active", service)
	p.Active = active == "active"

	enabled, _ := e.run(ctx, "is-enabled", service)
	p.Enabled = enabled == "enabled"

	status, err := e.run(ctx, "status", service, "--no-pager")
	if err != nil && status == "" {
		return p, fmt.Errorf("probe service %s: %w", service, err)
	}
	p.Exists = !strings.Contains(status, "could not be found") && !strings.Contains(status, "Unit "+service+" could not be found")
	if !p.Exists {
		// systemctl is-active/is-enabled both report "inactive"/"unknown" on a
		// unit that doesn't exist; treat that combination as non-existent.
		p.Exists = active != "inactive" || enabled != "unknown"
	}

	for _, line := range strings.Split(status, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Loaded:") {
			p.Description = trimmed
		}
		if strings.Contains(trimmed, "Main PID") && strings.Contains(trimmed, "code=") {
			p.LastFailure = trimmed
		}
	}

	return p, nil
}

// Preview computes the expected post-state and risk for running
// operation on service, and records it under a fresh preview id.
func (e *Engine) Preview(ctx context.Context, service string, operation Operation) (Preview, error) {
	probe, err := e.Probe(ctx, service)
	if err != nil {
		return Preview{}, err
	}
	if !probe.Exists {
		return Preview{}, fmt.Errorf("service %s does not exist", service)
	}

	level := risk.AssessServiceAction(string(operation), probe.Active, probe.Enabled)

	p := Preview{
		ID:                 uuid.New().String(),
		Service:            service,
		Operation:          operation,
		CurrentActive:      probe.Active,
		CurrentEnabled:     probe.Enabled,
		ExpectedActive:     expectedActive(operation, probe.Active),
		ExpectedEnabled:    expectedEnabled(operation, probe.Enabled),
		Risk:               level,
		ConfirmationPhrase: risk.ConfirmationPhrase(level),
		createdAt:          time.Now(),
	}

	e.mu.Lock()
	e.previews[p.ID] = p
	e.mu.Unlock()

	return p, nil
}

func expectedActive(op Operation, current bool) bool {
	switch op {
	case Start, Restart:
		return true
	case Stop:
		return false
	default:
		return current
	}
}

func expectedEnabled(op Operation, current bool) bool {
	switch op {
	case Enable:
		return true
	case Disable:
		return false
	default:
		return current
	}
}

// Apply runs operation on service, provided previewID refers to a
// recorded preview whose service/operation match and confirmation
// matches that preview's phrase exactly (invariants 1-2). Prior state is
// captured into the rollback bundle before the operation runs.
func (e *Engine) Apply(ctx context.Context, caseID, service string, operation Operation, previewID, confirmation string) (ApplyResult, error) {
	e.mu.Lock()
	preview, ok := e.previews[previewID]
	e.mu.Unlock()
	if !ok {
		return ApplyResult{}, fmt.Errorf("no preview found for id %s", previewID)
	}
	if preview.Service != service || preview.Operation != operation {
		return ApplyResult{}, fmt.Errorf("preview %s does not match requested service/operation", previewID)
	}
	if confirmation != preview.ConfirmationPhrase {
		return ApplyResult{}, fmt.Errorf("confirmation phrase does not match")
	}

	probe, err := e.Probe(ctx, service)
	if err != nil {
		return ApplyResult{}, err
	}
	if !probe.Exists {
		return ApplyResult{}, fmt.Errorf("service %s does not exist", service)
	}

	unlock := e.locks.Lock(caseID)
	defer unlock()

	result := ApplyResult{
		CaseID:       caseID,
		Service:      service,
		Operation:    operation,
		PriorActive:  probe.Active,
		PriorEnabled: probe.Enabled,
	}
	if err := e.bundles.WriteMeta(caseID, serviceActionMetaFile, result); err != nil {
		return ApplyResult{}, fmt.Errorf("persist rollback metadata: %w", err)
	}

	args := systemctlArgs(operation, service)
	if _, err := e.run(ctx, args...); err != nil {
		return ApplyResult{}, fmt.Errorf("systemctl %s %s: %w", operation, service, err)
	}

	return result, nil
}

func systemctlArgs(op Operation, service string) []string {
	switch op {
	case Start, Stop, Restart, Enable, Disable:
		return []string{string(op), service}
	default:
		return []string{"status", service}
	}
}

// Rollback re-establishes the prior active/enabled state for caseID,
// reading the state captured at apply time back from the case's rollback
// bundle rather than trusting caller-supplied booleans (spec §4.3:
// rollback reads only from the bundle). It is idempotent: if the unit is
// already in the prior state, the corresponding systemctl call is a no-op
// from the operator's perspective (systemctl itself treats repeat
// start/stop as harmless).
func (e *Engine) Rollback(ctx context.Context, caseID string) error {
	var result ApplyResult
	if err := e.bundles.ReadMeta(caseID, serviceActionMetaFile, &result); err != nil {
		return fmt.Errorf("resolve rollback state for case %s: %w", caseID, err)
	}

	probe, err := e.Probe(ctx, result.Service)
	if err != nil {
		return err
	}

	if probe.Active != result.PriorActive {
		verb := "stop"
		if result.PriorActive {
			verb = "start"
		}
		if _, err := e.run(ctx, verb, result.Service); err != nil {
			return fmt.Errorf("rollback active state: %w", err)
		}
	}

	if probe.Enabled != result.PriorEnabled {
		verb := "disable"
		if result.PriorEnabled {
			verb = "enable"
		}
		if _, err := e.run(ctx, verb, result.Service); err != nil {
			return fmt.Errorf("rollback enabled state: %w", err)
		}
	}

	return nil
}
