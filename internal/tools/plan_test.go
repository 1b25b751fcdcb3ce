package tools

import (
	"context"
	"testing"

	"github.com/hostadvisord/hostadvisord/internal/evidence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan_TwoStepsWithTypedParams(t *testing.T) {
	text := "TOOLS: recent_installs(days=7), journal_warnings(service=nginx, minutes=60)\nRATIONALE: checking for recent package churn around the nginx crash"

	plan, found := ParsePlan(text)
	require.True(t, found)
	require.Len(t, plan.Steps, 2)

	assert.Equal(t, "recent_installs", plan.Steps[0].Name)
	assert.Equal(t, "7", plan.Steps[0].Parameters["days"])

	assert.Equal(t, "journal_warnings", plan.Steps[1].Name)
	assert.Equal(t, "nginx", plan.Steps[1].Parameters["service"])
	assert.Equal(t, "60", plan.Steps[1].Parameters["minutes"])

	assert.Contains(t, plan.Rationale, "nginx crash")
}

func TestParsePlan_CoerceParamsAppliesCatalogTypes(t *testing.T) {
	plan, found := ParsePlan("TOOLS: recent_installs(days=7), journal_warnings(service=nginx, minutes=60)")
	require.True(t, found)

	catalog := NewCatalog(
		Definition{Name: "recent_installs", Params: []Param{{Name: "days", Type: ParamInteger}}},
		Definition{Name: "journal_warnings", Params: []Param{
			{Name: "service", Type: ParamString},
			{Name: "minutes", Type: ParamInteger},
		}},
	)

	def1, ok := catalog.Lookup(plan.Steps[0].Name)
	require.True(t, ok)
	coerced1 := CoerceParams(def1, plan.Steps[0].Parameters)
	assert.Equal(t, 7, coerced1["days"])

	def2, ok := catalog.Lookup(plan.Steps[1].Name)
	require.True(t, ok)
	coerced2 := CoerceParams(def2, plan.Steps[1].Parameters)
	assert.Equal(t, "nginx", coerced2["service"])
	assert.Equal(t, 60, coerced2["minutes"])
}

func TestParsePlan_EmptyWhitespaceAndNone(t *testing.T) {
	for _, text := range []string{"", "   ", "TOOLS:", "TOOLS: none", "TOOLS:   NONE  "} {
		plan, _ := ParsePlan(text)
		assert.Empty(t, plan.Steps, "input %q should yield no steps", text)
	}
}

func TestParsePlan_NoToolsLineReportsNotFound(t *testing.T) {
	plan, found := ParsePlan("just some free text with no grammar at all")
	assert.False(t, found)
	assert.Empty(t, plan.Steps)
}

func TestParsePlan_NeverPanicsOnMalformedInput(t *testing.T) {
	malformed := []string{
		"TOOLS: foo(",
		"TOOLS: foo)",
		"TOOLS: (a=1)",
		"TOOLS: foo(a=, =b)",
		"TOOLS: , , ,",
		"TOOLS: foo(bar(baz=1))",
	}
	for _, text := range malformed {
		assert.NotPanics(t, func() {
			ParsePlan(text)
		}, "input %q", text)
	}
}

func TestParsePlan_BareToolNameWithNoParens(t *testing.T) {
	plan, found := ParsePlan("TOOLS: disk_usage, uptime")
	require.True(t, found)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "disk_usage", plan.Steps[0].Name)
	assert.Nil(t, plan.Steps[0].Parameters)
	assert.Equal(t, "uptime", plan.Steps[1].Name)
}

func TestExecutePlan_AssignsSequentialEvidenceIdsAndContinuesPastFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register(Registered{
		Definition: Definition{Name: "ok_tool", Security: ReadOnly, LatencyHint: Fast},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, string, error) {
			return map[string]interface{}{"k": "v"}, "ok", nil
		},
	})

	plan := Plan{Steps: []Step{
		{Name: "ok_tool"},
		{Name: "missing_tool"},
		{Name: "ok_tool"},
	}}

	collector := evidence.NewCollector()
	executor := NewExecutor(reg)
	results := ExecutePlan(context.Background(), plan, reg.Catalog(), executor, collector)

	require.Len(t, results, 3)
	assert.Equal(t, "E1", results[0].EvidenceID)
	assert.True(t, results[0].Success)

	assert.Equal(t, "E2", results[1].EvidenceID)
	assert.False(t, results[1].Success)
	assert.Equal(t, "Tool not in allowlist", results[1].Error)

	assert.Equal(t, "E3", results[2].EvidenceID)
	assert.True(t, results[2].Success)

	assert.Equal(t, 3, collector.Len())
}
