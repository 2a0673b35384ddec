package expert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/internal/expert/cbr"
	"github.com/sandevgo/faltabot/internal/expert/explain"
	"github.com/sandevgo/faltabot/internal/expert/infer"
	"github.com/sandevgo/faltabot/internal/rules"
	"github.com/sandevgo/faltabot/internal/storage/memstore"
)

func newTestSystem() (*System, *memstore.CaseStore) {
	store := memstore.NewCaseStore()
	return NewSystem(infer.New(), cbr.New(store)), store
}

func testRuleset() []core.Rule {
	return []core.Rule{
		{
			ID:          "ausencia_sin_aviso",
			Name:        "Unreported absence",
			Condition:   "aviso_previo == False",
			Action:      "mark_sanction('Leve', 'absence without prior notice')",
			Priority:    10,
			Severity:    core.SeverityError,
			Explanation: "Absences must be reported in advance.",
		},
		{
			ID:        "enfermedad_sin_certificado",
			Name:      "Sick leave without certificate",
			Condition: "motivo == 'Enfermedad' and certificate_uploaded == False",
			Action:    "require_approval('no medical certificate on file')",
			Priority:  20,
			Severity:  core.SeverityWarning,
		},
		{
			ID:        "ausencias_reiteradas",
			Name:      "Repeated absences",
			Condition: "ausencias_ultimo_mes >= 3",
			Action:    "add_observacion('three or more absences in the last month')",
			Priority:  30,
			Severity:  core.SeverityWarning,
		},
	}
}

func TestProcessAbsence_Sanctioned(t *testing.T) {
	system, store := newTestSystem()
	snapshot := rules.NewSnapshot(testRuleset())

	decision, err := system.ProcessAbsence(context.Background(), snapshot, map[string]any{
		"motivo":               "Enfermedad",
		"aviso_previo":         false,
		"certificate_uploaded": false,
		"ausencias_ultimo_mes": int64(1),
		"duracion":             int64(2),
	}, explain.AudienceHR)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeSanctioned, decision.Outcome)
	assert.True(t, decision.RequiresHumanReview)
	assert.Equal(t, "high", decision.RiskLevel)
	assert.Contains(t, decision.NextActions, "record the sanction with HR")
	assert.NoError(t, decision.StoreErr)
	require.Len(t, decision.CaseID, 12)

	// The decision was committed to case memory.
	stored, ok, err := store.GetCase(context.Background(), decision.CaseID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.OutcomeSanctioned, stored.Outcome)
	assert.Contains(t, stored.RulesApplied, "ausencia_sin_aviso")
}

func TestProcessAbsence_RequiresApproval(t *testing.T) {
	system, _ := newTestSystem()
	snapshot := rules.NewSnapshot(testRuleset())

	decision, err := system.ProcessAbsence(context.Background(), snapshot, map[string]any{
		"motivo":               "Enfermedad",
		"aviso_previo":         true,
		"certificate_uploaded": false,
		"ausencias_ultimo_mes": int64(0),
	}, explain.AudienceSupervisor)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeRequiresApproval, decision.Outcome)
	assert.True(t, decision.RequiresHumanReview)
	assert.Equal(t, "medium", decision.RiskLevel)
	assert.Equal(t, []string{"escalate to the supervisor for approval"}, decision.NextActions)
}

func TestProcessAbsence_WithConditions(t *testing.T) {
	system, _ := newTestSystem()
	snapshot := rules.NewSnapshot(testRuleset())

	decision, err := system.ProcessAbsence(context.Background(), snapshot, map[string]any{
		"motivo":               "Vacaciones",
		"aviso_previo":         true,
		"certificate_uploaded": true,
		"ausencias_ultimo_mes": int64(4),
	}, explain.AudienceHR)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeWithConditions, decision.Outcome)
	assert.False(t, decision.RequiresHumanReview)
	assert.Equal(t, "medium", decision.RiskLevel)
}

func TestProcessAbsence_AutoApproved(t *testing.T) {
	system, _ := newTestSystem()
	snapshot := rules.NewSnapshot(testRuleset())

	decision, err := system.ProcessAbsence(context.Background(), snapshot, map[string]any{
		"motivo":               "Vacaciones",
		"aviso_previo":         true,
		"certificate_uploaded": true,
		"ausencias_ultimo_mes": int64(0),
	}, explain.AudienceEmployee)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeAutoApproved, decision.Outcome)
	assert.False(t, decision.RequiresHumanReview)
	assert.Equal(t, "low", decision.RiskLevel)
	assert.Equal(t, []string{"approve automatically"}, decision.NextActions)
	assert.Contains(t, decision.Explanation, "No rules applied")
}

func TestProcessAbsence_ReservedFactRejected(t *testing.T) {
	system, _ := newTestSystem()
	snapshot := rules.NewSnapshot(testRuleset())

	_, err := system.ProcessAbsence(context.Background(), snapshot, map[string]any{
		"motivo":           "Vacaciones",
		"sancion_aplicada": true,
	}, explain.AudienceHR)
	require.Error(t, err)
}

func TestProcessAbsence_StoreFailureDegrades(t *testing.T) {
	store := failingCases{}
	system := NewSystem(infer.New(), cbr.New(store))
	snapshot := rules.NewSnapshot(testRuleset())

	decision, err := system.ProcessAbsence(context.Background(), snapshot, map[string]any{
		"motivo":               "Vacaciones",
		"aviso_previo":         true,
		"certificate_uploaded": true,
		"ausencias_ultimo_mes": int64(0),
	}, explain.AudienceHR)
	require.NoError(t, err)

	assert.Equal(t, core.OutcomeAutoApproved, decision.Outcome)
	assert.Error(t, decision.StoreErr)
}

type failingCases struct{}

func (failingCases) UpsertCase(context.Context, core.Case) error {
	return assert.AnError
}

func (failingCases) RecentCases(context.Context, int) ([]core.Case, error) {
	return nil, assert.AnError
}

func (failingCases) GetCase(context.Context, string) (core.Case, bool, error) {
	return core.Case{}, false, assert.AnError
}

func (failingCases) UpdateFeedback(context.Context, string, string, bool) error {
	return assert.AnError
}

func (failingCases) CountCases(context.Context) (int64, error) {
	return 0, assert.AnError
}
