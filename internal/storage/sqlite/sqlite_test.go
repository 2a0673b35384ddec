package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/faltabot/internal/core"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDB(context.Background(), filepath.Join(t.TempDir(), "faltabot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleCase(id string) core.Case {
	return core.Case{
		CaseID: id,
		Facts: map[string]any{
			"motivo":   "Enfermedad",
			"duracion": float64(3),
		},
		RulesApplied: []string{"enfermedad_sin_certificado"},
		ActionsTaken: []string{"approval required: no certificate"},
		Outcome:      "requires_approval",
		SimilarityFeatures: map[string]float64{
			"motivo":   3.0,
			"duracion": 3.0,
		},
		Timestamp: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestCaseRepo_Roundtrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepo(newTestDB(t))

	require.NoError(t, repo.UpsertCase(ctx, sampleCase("abc123def456")))

	got, ok, err := repo.GetCase(ctx, "abc123def456")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "requires_approval", got.Outcome)
	assert.Equal(t, []string{"enfermedad_sin_certificado"}, got.RulesApplied)
	assert.Equal(t, "Enfermedad", got.Facts["motivo"])
	assert.InDelta(t, 3.0, got.SimilarityFeatures["duracion"], 1e-9)
	assert.True(t, got.Timestamp.Equal(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)))
	assert.Empty(t, got.Feedback)
	assert.False(t, got.ExpertValidation)

	_, ok, err = repo.GetCase(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCaseRepo_UpsertKeepsReview(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepo(newTestDB(t))

	c := sampleCase("abc123def456")
	require.NoError(t, repo.UpsertCase(ctx, c))
	require.NoError(t, repo.UpdateFeedback(ctx, c.CaseID, "too strict", true))

	// Resubmitting the same case must not wipe the human review.
	c.Outcome = "approved_with_conditions"
	require.NoError(t, repo.UpsertCase(ctx, c))

	got, ok, err := repo.GetCase(ctx, c.CaseID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "approved_with_conditions", got.Outcome)
	assert.Equal(t, "too strict", got.Feedback)
	assert.True(t, got.ExpertValidation)

	count, err := repo.CountCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCaseRepo_RecentCasesWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepo(newTestDB(t))

	ids := []string{"case00000001", "case00000002", "case00000003"}
	for _, id := range ids {
		require.NoError(t, repo.UpsertCase(ctx, sampleCase(id)))
	}

	cases, err := repo.RecentCases(ctx, 2)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "case00000002", cases[0].CaseID)
	assert.Equal(t, "case00000003", cases[1].CaseID)
}

func TestCaseRepo_UpdateFeedbackUnknownID(t *testing.T) {
	repo := NewCaseRepo(newTestDB(t))
	err := repo.UpdateFeedback(context.Background(), "missing", "x", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestExecutionRepo_Roundtrip(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepo(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Millisecond)

	rows := []core.RuleExecution{
		{
			RunID:           "run-1",
			RuleID:          "ausencia_sin_aviso",
			RuleName:        "Unreported absence",
			ExecutedAt:      now.Add(-time.Hour),
			CaseFacts:       map[string]any{"aviso_previo": false},
			ConditionResult: true,
			ActionExecuted:  "mark_sanction('Leve', 'no notice')",
			ElapsedMillis:   1.5,
		},
		{
			RunID:         "run-1",
			RuleID:        "ausencia_sin_aviso",
			RuleName:      "Unreported absence",
			ExecutedAt:    now,
			CaseFacts:     map[string]any{"aviso_previo": true},
			ElapsedMillis: 0.5,
		},
		{
			RunID:           "run-2",
			RuleID:          "certificado_vencido",
			RuleName:        "Expired certificate",
			ExecutedAt:      now.Add(-72 * time.Hour),
			CaseFacts:       map[string]any{},
			ConditionResult: true,
			ElapsedMillis:   2.0,
		},
	}
	for _, ex := range rows {
		require.NoError(t, repo.LogExecution(ctx, ex))
	}

	stats, err := repo.RuleStats(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "ausencia_sin_aviso", stats[0].RuleID)
	assert.Equal(t, int64(2), stats[0].Executions)
	assert.Equal(t, int64(1), stats[0].Fired)
	assert.InDelta(t, 1.0, stats[0].AvgElapsedMs, 1e-9)
	assert.True(t, stats[0].LastExecutedAt.Equal(now))

	execs, err := repo.RecentExecutions(ctx, 2)
	require.NoError(t, err)
	require.Len(t, execs, 2)
	// Newest first.
	assert.Equal(t, "certificado_vencido", execs[0].RuleID)
	assert.Equal(t, "ausencia_sin_aviso", execs[1].RuleID)
	assert.Empty(t, execs[1].ActionExecuted)
	assert.Equal(t, true, execs[1].CaseFacts["aviso_previo"])
}
