// Package advisor implements the Advice record shape (spec §3 "Advice
// record"): the advisor's output independent of rule content, which is
// explicitly out of scope. Only the record shape and its risk/action
// invariant live here.
package advisor

import "fmt"

// Priority ranks how strongly an Advice should be acted on.
type Priority string

const (
	PriorityMandatory   Priority = "mandatory"
	PriorityRecommended Priority = "recommended"
	PriorityOptional    Priority = "optional"
	PriorityCosmetic    Priority = "cosmetic"
)

// Risk is the risk level of acting on an Advice.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// atLeastMedium reports whether r is medium or high.
func (r Risk) atLeastMedium() bool {
	return r == RiskMedium || r == RiskHigh
}

// Alternative is an alternative package or approach an Advice mentions.
type Alternative struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	InstallCommand string `json:"install_command,omitempty"`
}

// DependencyGraph captures how one piece of advice relates to others, by
// recipe or advice id. The advisor treats cycles in these adjacency lists
// as permitted; cycle-breaking is not this package's job.
type DependencyGraph struct {
	DependsOn []string `json:"depends_on,omitempty"`
	RelatedTo []string `json:"related_to,omitempty"`
	Satisfies []string `json:"satisfies,omitempty"`
	Requires  []string `json:"requires,omitempty"`
	Bundle    string   `json:"bundle,omitempty"`
}

// Advice is one recommendation surfaced to the operator.
type Advice struct {
	ID             string          `json:"id"`
	Priority       Priority        `json:"priority"`
	Risk           Risk            `json:"risk"`
	Title          string          `json:"title"`
	Reason         string          `json:"reason"`
	Action         string          `json:"action"`
	Command        string          `json:"command,omitempty"`
	Alternatives   []Alternative   `json:"alternatives,omitempty"`
	DocReferences  []string        `json:"doc_references,omitempty"`
	Dependencies   DependencyGraph `json:"dependencies"`
	PopularityScore int            `json:"popularity_score"`
}

// Validate enforces the invariant: an Advice carrying risk >= medium must
// also carry an explicit action string distinct from the command.
func (a Advice) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("advisor: advice id is required")
	}
	if a.PopularityScore < 0 || a.PopularityScore > 100 {
		return fmt.Errorf("advisor: advice %s popularity score %d out of [0,100]", a.ID, a.PopularityScore)
	}
	if a.Risk.atLeastMedium() {
		if a.Action == "" {
			return fmt.Errorf("advisor: advice %s has risk %s but no explicit action", a.ID, a.Risk)
		}
		if a.Action == a.Command {
			return fmt.Errorf("advisor: advice %s action must be distinct from its command", a.ID)
		}
	}
	return nil
}

// New builds an Advice, returning an error if it violates the risk/action
// invariant.
func New(id string, priority Priority, risk Risk, title, reason, action string) (Advice, error) {
	a := Advice{
		ID:       id,
		Priority: priority,
		Risk:     risk,
		Title:    title,
		Reason:   reason,
		Action:   action,
	}
	if err := a.Validate(); err != nil {
		return Advice{}, err
	}
	return a, nil
}
