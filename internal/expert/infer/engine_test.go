package infer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/faltabot/internal/core"
)

func sampleFacts() map[string]any {
	return map[string]any{
		"motivo":               "Enfermedad Inculpable",
		"duracion":             5,
		"ausencias_ultimo_mes": 3,
		"certificate_uploaded": false,
		"sector":               "linea1",
	}
}

type captureRecorder struct {
	rows []core.RuleExecution
}

func (c *captureRecorder) Record(_ context.Context, ex core.RuleExecution) error {
	c.rows = append(c.rows, ex)
	return nil
}

func TestRun_NilRulesetFails(t *testing.T) {
	_, err := New().Run(context.Background(), nil, sampleFacts())
	require.Error(t, err)
}

func TestRun_EmptyRulesetReachesFixedPoint(t *testing.T) {
	result, err := New().Run(context.Background(), []core.Rule{}, sampleFacts())
	require.NoError(t, err)
	assert.Equal(t, core.HaltFixedPoint, result.Halt)
	assert.Empty(t, result.Steps)
	assert.NotEmpty(t, result.RunID)
}

func TestRun_ReservedFactNameFails(t *testing.T) {
	facts := sampleFacts()
	facts["sancion_aplicada"] = true

	_, err := New().Run(context.Background(), []core.Rule{}, facts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestRun_ExecutedGuardFactRejected(t *testing.T) {
	facts := sampleFacts()
	facts["rule_x_executed"] = true

	_, err := New().Run(context.Background(), []core.Rule{}, facts)
	require.Error(t, err)
}

func TestRun_PriorityOrder(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "late", Name: "Late", Condition: "duracion > 1", Action: "add_observacion('late')", Priority: 20, Severity: core.SeverityInfo},
		{ID: "early", Name: "Early", Condition: "duracion > 1", Action: "add_observacion('early')", Priority: 10, Severity: core.SeverityInfo},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "early", result.Steps[0].RuleID)
	assert.Equal(t, "late", result.Steps[1].RuleID)
	assert.Equal(t, core.HaltFixedPoint, result.Halt)
}

func TestRun_EqualPriorityKeepsDefinitionOrder(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "first", Name: "First", Condition: "True", Action: "add_observacion('a')", Priority: 50, Severity: core.SeverityInfo},
		{ID: "second", Name: "Second", Condition: "True", Action: "add_observacion('b')", Priority: 50, Severity: core.SeverityInfo},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "first", result.Steps[0].RuleID)
	assert.Equal(t, "second", result.Steps[1].RuleID)
}

func TestRun_RuleFiresAtMostOnce(t *testing.T) {
	// The condition stays true after firing, the executed guard must
	// still stop a second firing.
	ruleset := []core.Rule{
		{ID: "sticky", Name: "Sticky", Condition: "duracion > 1", Action: "add_observacion('again')", Priority: 10, Severity: core.SeverityInfo},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	assert.Len(t, result.Steps, 1)
	assert.Len(t, result.Observations, 1)
	assert.Equal(t, core.HaltFixedPoint, result.Halt)
}

func TestRun_SetFactChaining(t *testing.T) {
	// A lower-priority rule derives a fact the higher-priority rule
	// needs; the restart scan must pick the unlocked rule up.
	ruleset := []core.Rule{
		{ID: "derive", Name: "Derive", Condition: "ausencias_ultimo_mes >= 3", Action: "set_fact('riesgo_alto', True)", Priority: 10, Severity: core.SeverityInfo},
		{ID: "escalate", Name: "Escalate", Condition: "riesgo_alto", Action: "require_approval()", Priority: 5, Severity: core.SeverityWarning},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, "derive", result.Steps[0].RuleID)
	assert.Equal(t, "escalate", result.Steps[1].RuleID)
	assert.Equal(t, true, result.FinalFacts["requiere_aprobacion"])
	assert.Equal(t, "Escalate", result.FinalFacts["aprobacion_motivo"])
}

func TestRun_SanctionSetsReservedFacts(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "sancion", Name: "Ausencia sin aviso", Condition: "motivo == 'Ausencia sin Aviso'", Action: "mark_sanction()", Priority: 10, Severity: core.SeverityError},
	}
	facts := sampleFacts()
	facts["motivo"] = "Ausencia sin Aviso"

	result, err := New().Run(context.Background(), ruleset, facts)
	require.NoError(t, err)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, true, result.FinalFacts["sancion_aplicada"])
	assert.Equal(t, "Ausencia sin aviso", result.FinalFacts["sancion_motivo"])
	assert.Contains(t, result.ActionsTaken, "sanction applied")
}

func TestRun_MalformedActionIsLoggedNoOp(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "broken", Name: "Broken", Condition: "True", Action: "foo(", Priority: 10, Severity: core.SeverityInfo},
		{ID: "fine", Name: "Fine", Condition: "True", Action: "add_observacion('ok')", Priority: 20, Severity: core.SeverityInfo},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	// The broken rule still counts as fired so it cannot loop, but it
	// contributes no action.
	require.Len(t, result.Steps, 2)
	assert.Equal(t, []string{"observation added: ok"}, result.ActionsTaken)
	assert.Equal(t, []string{"Fine"}, result.Conclusions)
}

func TestRun_BadConditionSkipsRule(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "bad", Name: "Bad", Condition: "duracion >", Action: "mark_sanction()", Priority: 10, Severity: core.SeverityError},
		{ID: "good", Name: "Good", Condition: "duracion > 1", Action: "add_observacion('ok')", Priority: 20, Severity: core.SeverityInfo},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	require.Len(t, result.Steps, 1)
	assert.Equal(t, "good", result.Steps[0].RuleID)
	assert.NotContains(t, result.FinalFacts, "sancion_aplicada")
}

func TestRun_ActivationConditionGatesRule(t *testing.T) {
	ruleset := []core.Rule{
		{
			ID: "gated", Name: "Gated",
			ActivationCondition: "sector == 'deposito'",
			Condition:           "duracion > 1",
			Action:              "add_observacion('gated')",
			Priority:            10, Severity: core.SeverityInfo,
		},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	assert.Empty(t, result.Steps)
}

func TestRun_ObservationListVisibleToRules(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "first", Name: "First", Condition: "True", Action: "add_observacion('uno')", Priority: 10, Severity: core.SeverityInfo},
		{ID: "count", Name: "Count", Condition: "len(observaciones) >= 1", Action: "require_approval()", Priority: 20, Severity: core.SeverityWarning},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	require.Len(t, result.Steps, 2)
	assert.Equal(t, true, result.FinalFacts["requiere_aprobacion"])
}

func TestRun_ObservationMessageUsesFacts(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "msg", Name: "Msg", Condition: "True", Action: "add_observacion('faltas: ' + str(ausencias_ultimo_mes))", Priority: 10, Severity: core.SeverityInfo},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	require.Len(t, result.Observations, 1)
	assert.Equal(t, "faltas: 3", result.Observations[0].Message)
}

func TestRun_IterationCapHalts(t *testing.T) {
	ruleset := []core.Rule{
		{ID: "a", Name: "A", Condition: "True", Action: "add_observacion('a')", Priority: 10, Severity: core.SeverityInfo},
		{ID: "b", Name: "B", Condition: "True", Action: "add_observacion('b')", Priority: 20, Severity: core.SeverityInfo},
	}

	result, err := New(WithMaxIterations(1)).Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	assert.Len(t, result.Steps, 1)
	assert.Equal(t, core.HaltIterationCap, result.Halt)
}

func TestRun_RecorderReceivesFirings(t *testing.T) {
	rec := &captureRecorder{}
	ruleset := []core.Rule{
		{ID: "a", Name: "A", Condition: "True", Action: "add_observacion('a')", Priority: 10, Severity: core.SeverityInfo},
		{ID: "never", Name: "Never", Condition: "duracion > 100", Action: "mark_sanction()", Priority: 20, Severity: core.SeverityError},
	}

	result, err := New(WithRecorder(rec)).Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	require.Len(t, rec.rows, 1)
	assert.Equal(t, "a", rec.rows[0].RuleID)
	assert.Equal(t, result.RunID, rec.rows[0].RunID)
	assert.True(t, rec.rows[0].ConditionResult)
}

func TestRun_ClockDrivesSpecials(t *testing.T) {
	// A Saturday morning.
	fixed := time.Date(2025, 3, 8, 9, 30, 0, 0, time.UTC)
	ruleset := []core.Rule{
		{ID: "weekend", Name: "Weekend", Condition: "is_weekend()", Action: "add_observacion('weekend')", Priority: 10, Severity: core.SeverityInfo},
		{ID: "hour", Name: "Hour", Condition: "current_hour == 9", Action: "add_observacion('morning')", Priority: 20, Severity: core.SeverityInfo},
	}

	result, err := New(WithClock(func() time.Time { return fixed })).Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	assert.Len(t, result.Steps, 2)
}

func TestRun_DaysSinceFallback(t *testing.T) {
	// Absent timestamps count as ancient history, not as errors.
	ruleset := []core.Rule{
		{ID: "old", Name: "Old", Condition: "days_since(fecha_inexistente) > 30", Action: "add_observacion('old')", Priority: 10, Severity: core.SeverityInfo},
	}

	result, err := New().Run(context.Background(), ruleset, sampleFacts())
	require.NoError(t, err)
	assert.Len(t, result.Steps, 1)
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"observation", "add_observacion('hola')", false},
		{"observation with expr", "add_observacion('x: ' + str(duracion))", false},
		{"sanction", "mark_sanction()", false},
		{"approval", "require_approval()", false},
		{"set fact", "set_fact('nivel', 3)", false},
		{"unknown verb", "delete_everything()", true},
		{"sanction with args", "mark_sanction(1)", true},
		{"set fact non literal name", "set_fact(name, 1)", true},
		{"set fact reserved name", "set_fact('sancion_aplicada', True)", true},
		{"bare expression", "duracion + 1", true},
		{"unterminated", "foo(", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAction(tt.text)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateAction(t *testing.T) {
	ok, _ := ValidateAction("require_approval()")
	assert.True(t, ok)

	ok, reason := ValidateAction("format_disk()")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}
