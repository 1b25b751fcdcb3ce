package advisor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hostFacts struct {
	DiskUsedPercent float64
}

func TestEngine_EvaluateCollectsOnlyFiredRules(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Register(Rule{
		ID: "disk-pressure",
		Evaluate: func(facts interface{}) (Advice, bool, error) {
			f := facts.(hostFacts)
			if f.DiskUsedPercent < 90 {
				return Advice{}, false, nil
			}
			return Advice{ID: "disk-pressure", Risk: RiskLow, Title: "disk is nearly full", Reason: "usage exceeds 90%"}, true, nil
		},
	}))
	require.NoError(t, e.Register(Rule{
		ID: "never-fires",
		Evaluate: func(facts interface{}) (Advice, bool, error) {
			return Advice{}, false, nil
		},
	}))

	advice, err := e.Evaluate(hostFacts{DiskUsedPercent: 95})
	require.NoError(t, err)
	require.Len(t, advice, 1)
	assert.Equal(t, "disk-pressure", advice[0].ID)

	advice, err = e.Evaluate(hostFacts{DiskUsedPercent: 10})
	require.NoError(t, err)
	assert.Empty(t, advice)
}

func TestEngine_RegisterRejectsDuplicateID(t *testing.T) {
	e := NewEngine()
	rule := Rule{ID: "dup", Evaluate: func(interface{}) (Advice, bool, error) { return Advice{}, false, nil }}
	require.NoError(t, e.Register(rule))
	assert.Error(t, e.Register(rule))
}

func TestEngine_EvaluateReportsInvalidAdviceButContinues(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Register(Rule{
		ID: "invalid",
		Evaluate: func(interface{}) (Advice, bool, error) {
			return Advice{ID: "bad", Risk: RiskHigh, Action: ""}, true, nil
		},
	}))
	require.NoError(t, e.Register(Rule{
		ID: "valid",
		Evaluate: func(interface{}) (Advice, bool, error) {
			return Advice{ID: "good", Risk: RiskLow, Title: "fine"}, true, nil
		},
	}))

	advice, err := e.Evaluate(hostFacts{})
	assert.Error(t, err)
	require.Len(t, advice, 1)
	assert.Equal(t, "good", advice[0].ID)
}

func TestEngine_EvaluatePropagatesRuleError(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.Register(Rule{
		ID: "boom",
		Evaluate: func(interface{}) (Advice, bool, error) {
			return Advice{}, false, errors.New("facts unavailable")
		},
	}))

	_, err := e.Evaluate(hostFacts{})
	assert.Error(t, err)
}

func TestSortByPopularity_OrdersDescending(t *testing.T) {
	advice := []Advice{
		{ID: "low", PopularityScore: 10},
		{ID: "high", PopularityScore: 90},
		{ID: "mid", PopularityScore: 50},
	}
	sorted := SortByPopularity(advice)
	require.Len(t, sorted, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{sorted[0].ID, sorted[1].ID, sorted[2].ID})
}
