// Package risk classifies the blast radius of a mutation and produces the
// confirmation phrase an operator must echo back before the mutation
// engine will apply it (spec §4.3). Patterns are adapted from the
// teacher's approval-store risk tables to this spec's service-action
// operations rather than free-text shell commands.
package risk

import "fmt"

// Level is a coarse risk tier.
type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// AssessServiceAction returns the risk level for a service operation
// given the unit's current state, per spec §4.3: low for starting an
// inactive unit, medium for restarting an active one, high for stopping
// an enabled-and-running unit. Anything else falls back to medium, since
// enable/disable changes boot-time behavior without an immediate effect.
func AssessServiceAction(operation string, active, enabled bool) Level {
	switch operation {
	case "start":
		if !active {
			return Low
		}
		return Medium
	case "restart":
		if active {
			return Medium
		}
		return Low
	case "stop":
		if enabled && active {
			return High
		}
		if active {
			return Medium
		}
		return Low
	case "enable", "disable":
		return Medium
	default:
		return Medium
	}
}

// ConfirmationPhrase returns the exact string an apply call must echo
// back for level, e.g. "I CONFIRM (medium risk)". The phrase is derived
// purely from the level so preview and apply always agree.
func ConfirmationPhrase(level Level) string {
	return fmt.Sprintf("I CONFIRM (%s risk)", level)
}
