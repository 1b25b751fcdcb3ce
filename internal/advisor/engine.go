package advisor

import (
	"fmt"
	"sort"
)

// Rule is a pure function that inspects arbitrary host facts and may
// produce an Advice. Rule content (the specific "install TLP" style
// heuristics) is out of scope; this package only specifies the framework
// a rule runs under, the way internal/alertengine specifies probe
// signatures without hardcoding what a probe checks.
type Rule struct {
	ID       string
	Evaluate func(facts interface{}) (Advice, bool, error)
}

// Engine runs a registered set of rules against host facts and collects
// the resulting Advice, in registration order.
type Engine struct {
	rules []Rule
}

// NewEngine creates an Engine with no rules registered.
func NewEngine() *Engine {
	return &Engine{}
}

// Register adds a rule to the engine. Registering two rules with the same
// ID is rejected so advice identifiers stay unique.
func (e *Engine) Register(r Rule) error {
	for _, existing := range e.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("advisor: rule %s already registered", r.ID)
		}
	}
	e.rules = append(e.rules, r)
	return nil
}

// Evaluate runs every registered rule against facts, skipping rules that
// don't fire and surfacing an error if a fired rule produces an invalid
// Advice. One rule's error does not stop the others from running.
func (e *Engine) Evaluate(facts interface{}) ([]Advice, error) {
	var out []Advice
	var firstErr error
	for _, r := range e.rules {
		advice, fired, err := r.Evaluate(facts)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("advisor: rule %s: %w", r.ID, err)
			}
			continue
		}
		if !fired {
			continue
		}
		if err := advice.Validate(); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("advisor: rule %s produced invalid advice: %w", r.ID, err)
			}
			continue
		}
		out = append(out, advice)
	}
	return out, firstErr
}

// SortByPopularity returns advice sorted by descending popularity score,
// the default ordering the advice-query IPC method presents.
func SortByPopularity(advice []Advice) []Advice {
	sorted := make([]Advice, len(advice))
	copy(sorted, advice)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PopularityScore > sorted[j].PopularityScore })
	return sorted
}
