package tools

import (
	"context"
	"strconv"
	"strings"

	"github.com/hostadvisord/hostadvisord/internal/evidence"
)

// Step is one call within a ToolPlan.
type Step struct {
	Name       string
	Parameters map[string]interface{}
}

// Plan is a parsed tool-plan (spec §4.1): a line of comma-separated tool
// calls plus an optional free-text rationale.
type Plan struct {
	Steps     []Step
	Rationale string
}

// ParsePlan parses the textual plan grammar:
//
//	TOOLS: name1, name2(param=value, param=value), ...
//	RATIONALE: free text
//
// Parsing is total: every input produces a Plan (possibly empty) and a
// bool reporting whether a "TOOLS:" line was found at all. It never
// returns an error and never panics (spec §8, property 3).
func ParsePlan(text string) (Plan, bool) {
	var plan Plan
	found := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "TOOLS:"):
			found = true
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, "TOOLS:"))
			plan.Steps = parseSteps(body)
		case strings.HasPrefix(trimmed, "RATIONALE:"):
			plan.Rationale = strings.TrimSpace(strings.TrimPrefix(trimmed, "RATIONALE:"))
		}
	}

	return plan, found
}

// parseSteps splits body on commas that are not nested inside parentheses,
// then parses each piece as "name" or "name(k=v, k2=v2)". Malformed
// pieces are skipped rather than causing a parse failure; "none" and
// whitespace-only input yield an empty step list.
func parseSteps(body string) []Step {
	if body == "" || strings.EqualFold(body, "none") {
		return nil
	}

	var steps []Step
	for _, piece := range splitTopLevel(body) {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		step, ok := parseStep(piece)
		if !ok {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

// splitTopLevel splits s on commas that occur outside of any "(...)"
// nesting, so "f(a=1, b=2), g" splits into ["f(a=1, b=2)", " g"].
func splitTopLevel(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func parseStep(piece string) (Step, bool) {
	open := strings.Index(piece, "(")
	if open == -1 {
		name := strings.TrimSpace(piece)
		if name == "" {
			return Step{}, false
		}
		return Step{Name: name}, true
	}

	if !strings.HasSuffix(piece, ")") {
		return Step{}, false
	}

	name := strings.TrimSpace(piece[:open])
	if name == "" {
		return Step{}, false
	}
	inner := piece[open+1 : len(piece)-1]

	params := make(map[string]interface{})
	for _, kv := range splitTopLevel(inner) {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		eq := strings.Index(kv, "=")
		if eq == -1 {
			continue
		}
		key := strings.TrimSpace(kv[:eq])
		val := strings.TrimSpace(kv[eq+1:])
		if key == "" {
			continue
		}
		params[key] = val
	}

	return Step{Name: name, Parameters: params}, true
}

// CoerceParams converts string-typed parameter values to integers where
// the catalog definition says the parameter is ParamInteger. Values that
// fail to parse as integers are left as strings rather than dropped.
func CoerceParams(def Definition, params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	typeByName := make(map[string]ParamType, len(def.Params))
	for _, p := range def.Params {
		typeByName[p.Name] = p.Type
	}

	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if typeByName[k] == ParamInteger {
			if s, ok := v.(string); ok {
				if n, err := strconv.Atoi(s); err == nil {
					out[k] = n
					continue
				}
			}
		}
		out[k] = v
	}
	return out
}

// ExecutePlan walks plan, allocating a fresh evidence id for each step
// from collector, running the tool via executor, stamping the id onto
// the result, and pushing it into collector. A failing step does not
// abort subsequent steps: partial evidence is still useful (spec §4.1).
func ExecutePlan(ctx context.Context, plan Plan, catalog *Catalog, executor *Executor, collector *evidence.Collector) []evidence.ToolResult {
	results := make([]evidence.ToolResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		id := collector.NextID()

		params := step.Parameters
		if def, ok := catalog.Lookup(step.Name); ok {
			params = CoerceParams(def, step.Parameters)
		}

		result := executor.Execute(ctx, step.Name, params)
		result.EvidenceID = id
		collector.Push(result)
		results = append(results, result)
	}
	return results
}
