package explain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sandevgo/faltabot/internal/core"
)

func sampleResult() *core.InferenceResult {
	return &core.InferenceResult{
		RunID: "run-1",
		Steps: []core.InferenceStep{
			{
				RuleID:    "derive",
				RuleName:  "Derive escalation",
				Condition: "duracion > 5",
				Action:    "set_fact('escalado', True)",
			},
			{
				RuleID:    "escalate",
				RuleName:  "Escalate",
				Condition: "escalado == True",
				Action:    "require_approval('long absence')",
			},
		},
		Observations: []core.Observation{
			{Severity: core.SeverityWarning, Message: "long absence"},
		},
		Halt:    core.HaltFixedPoint,
		Elapsed: 12 * time.Millisecond,
	}
}

func TestExplain_DetailLevels(t *testing.T) {
	g := NewGenerator()
	result := sampleResult()

	hr := g.Explain(result, nil, DefaultOptions(AudienceHR))
	assert.Contains(t, hr, "Rule **Derive escalation** fired")
	assert.Contains(t, hr, "condition `duracion > 5`")
	assert.Contains(t, hr, "[warning] long absence")
	assert.Contains(t, hr, "Rule chaining:")
	assert.Contains(t, hr, `established "escalado"`)
	assert.NotContains(t, hr, "run-1")

	employee := g.Explain(result, nil, DefaultOptions(AudienceEmployee))
	assert.Contains(t, employee, "Rule **Derive escalation** fired")
	assert.NotContains(t, employee, "condition `")
	assert.NotContains(t, employee, "Rule chaining:")

	admin := g.Explain(result, nil, DefaultOptions(AudienceAdmin))
	assert.Contains(t, admin, "run-1")
	assert.Contains(t, admin, "halt reason: fixed_point")
}

func TestExplain_SimilarCasesHiddenFromEmployees(t *testing.T) {
	g := NewGenerator()
	result := sampleResult()
	rec := &core.Recommendation{
		PredictedOutcome: "requires_approval",
		Confidence:       0.8,
		SimilarCases:     []core.SimilarCase{{Case: core.Case{CaseID: "abc"}}},
	}

	hr := g.Explain(result, rec, DefaultOptions(AudienceHR))
	assert.Contains(t, hr, "predicted outcome **requires_approval**")
	assert.Contains(t, hr, "confidence 80%")

	employee := g.Explain(result, rec, DefaultOptions(AudienceEmployee))
	assert.NotContains(t, employee, "Similar cases")
}

func TestExplain_EmptyRunAndIterationCap(t *testing.T) {
	g := NewGenerator()

	empty := &core.InferenceResult{Halt: core.HaltFixedPoint}
	out := g.Explain(empty, nil, DefaultOptions(AudienceEmployee))
	assert.Contains(t, out, "No rules applied")

	capped := sampleResult()
	capped.Halt = core.HaltIterationCap
	out = g.Explain(capped, nil, DefaultOptions(AudienceHR))
	assert.Contains(t, out, "iteration cap")
}
