package cbr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandevgo/faltabot/internal/storage/memstore"
)

func artFacts(duration int) map[string]any {
	return map[string]any{
		"motivo":               "ART",
		"duracion":             duration,
		"ausencias_ultimo_mes": 1,
		"certificate_uploaded": true,
		"validation_status":    "validated",
		"sector":               "linea1",
	}
}

func TestStoreCase_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewCaseStore()
	engine := New(repo)

	id1, err := engine.StoreCase(ctx, artFacts(3), []string{"r1"}, []string{"sanction applied"}, "sanctioned")
	require.NoError(t, err)
	require.Len(t, id1, 12)

	id2, err := engine.StoreCase(ctx, artFacts(3), []string{"r1"}, []string{"sanction applied"}, "sanctioned")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	count, err := repo.CountCases(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStoreCase_DifferentFactsDifferentIDs(t *testing.T) {
	ctx := context.Background()
	engine := New(memstore.NewCaseStore())

	id1, err := engine.StoreCase(ctx, artFacts(3), nil, nil, "auto_approved")
	require.NoError(t, err)
	id2, err := engine.StoreCase(ctx, artFacts(4), nil, nil, "auto_approved")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestFindSimilar_EmptyMemory(t *testing.T) {
	engine := New(memstore.NewCaseStore())

	similar, err := engine.FindSimilar(context.Background(), artFacts(3), DefaultTopK, DefaultMinSimilarity)
	require.NoError(t, err)
	assert.Empty(t, similar)
}

func TestFindSimilar_OrdersByScoreAndFilters(t *testing.T) {
	ctx := context.Background()
	engine := New(memstore.NewCaseStore())

	// Close neighbor: same profile, slightly longer absence.
	_, err := engine.StoreCase(ctx, artFacts(4), []string{"r1"}, []string{"a1"}, "sanctioned")
	require.NoError(t, err)

	// Distant case: different motive, different everything.
	far := map[string]any{
		"motivo":               "Permiso Gremial",
		"duracion":             30,
		"ausencias_ultimo_mes": 9,
		"certificate_uploaded": false,
		"validation_status":    "pending",
		"sector":               "RH",
	}
	_, err = engine.StoreCase(ctx, far, []string{"r2"}, []string{"a2"}, "auto_approved")
	require.NoError(t, err)

	similar, err := engine.FindSimilar(ctx, artFacts(3), 5, 0.0)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, "sanctioned", similar[0].Case.Outcome)
	assert.Greater(t, similar[0].SimilarityScore, similar[1].SimilarityScore)

	// A high floor drops the distant case.
	close, err := engine.FindSimilar(ctx, artFacts(3), 5, 0.9)
	require.NoError(t, err)
	require.Len(t, close, 1)
	assert.Equal(t, "sanctioned", close[0].Case.Outcome)
}

func TestFindSimilar_TruncatesToK(t *testing.T) {
	ctx := context.Background()
	engine := New(memstore.NewCaseStore())

	for d := 1; d <= 8; d++ {
		_, err := engine.StoreCase(ctx, artFacts(d), nil, nil, "auto_approved")
		require.NoError(t, err)
	}

	similar, err := engine.FindSimilar(ctx, artFacts(4), 3, 0.0)
	require.NoError(t, err)
	assert.Len(t, similar, 3)
}

func TestRecommend_NoNeighbors(t *testing.T) {
	engine := New(memstore.NewCaseStore())

	rec, err := engine.Recommend(context.Background(), artFacts(3))
	require.NoError(t, err)
	assert.Empty(t, rec.Items)
	assert.Empty(t, rec.PredictedOutcome)
	assert.NotEmpty(t, rec.Reasoning)
}

func TestRecommend_WeightedVote(t *testing.T) {
	ctx := context.Background()
	engine := New(memstore.NewCaseStore())

	// Two near-identical sanctioned cases against one more distant
	// approved case: the sanction vote must win and the confidence is
	// its share of the similarity mass.
	_, err := engine.StoreCase(ctx, artFacts(3), []string{"r1"}, []string{"sanction applied"}, "sanctioned")
	require.NoError(t, err)
	_, err = engine.StoreCase(ctx, artFacts(4), []string{"r1"}, []string{"sanction applied"}, "sanctioned")
	require.NoError(t, err)

	other := artFacts(12)
	other["motivo"] = "Licencia Enfermedad Personal"
	other["certificate_uploaded"] = false
	_, err = engine.StoreCase(ctx, other, []string{"r9"}, []string{"observation added: x"}, "auto_approved")
	require.NoError(t, err)

	rec, err := engine.Recommend(ctx, artFacts(3))
	require.NoError(t, err)
	assert.Equal(t, "sanctioned", rec.PredictedOutcome)
	assert.Greater(t, rec.Confidence, 0.5)
	assert.LessOrEqual(t, rec.Confidence, 1.0)
	require.NotEmpty(t, rec.Items)
	assert.Equal(t, "outcome_prediction", rec.Items[0].Type)
}

func TestRecommend_PatternAlert(t *testing.T) {
	ctx := context.Background()
	engine := New(memstore.NewCaseStore())

	// Unanimous neighborhood: confidence 1.0, alert expected.
	for d := 2; d <= 4; d++ {
		_, err := engine.StoreCase(ctx, artFacts(d), []string{"r1"}, []string{"sanction applied"}, "sanctioned")
		require.NoError(t, err)
	}

	rec, err := engine.Recommend(ctx, artFacts(3))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, rec.Confidence, 1e-9)

	var types []string
	for _, item := range rec.Items {
		types = append(types, item.Type)
	}
	assert.Contains(t, types, "pattern_alert")
	assert.Contains(t, types, "action_suggestion")
}

func TestUpdateFeedback(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewCaseStore()
	engine := New(repo)

	id, err := engine.StoreCase(ctx, artFacts(3), nil, nil, "auto_approved")
	require.NoError(t, err)

	require.NoError(t, engine.UpdateFeedback(ctx, id, "decision confirmed", true))

	c, ok, err := repo.GetCase(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "decision confirmed", c.Feedback)
	assert.True(t, c.ExpertValidation)

	err = engine.UpdateFeedback(ctx, "ffffffffffff", "x", false)
	require.Error(t, err)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	engine := New(memstore.NewCaseStore())

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalCases)
	assert.False(t, stats.LearningActive)

	for d := 1; d <= 12; d++ {
		_, err := engine.StoreCase(ctx, artFacts(d), nil, nil, "auto_approved")
		require.NoError(t, err)
	}

	stats, err = engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalCases)
	assert.True(t, stats.LearningActive)
	assert.Equal(t, int64(12), stats.OutcomeDistribution["auto_approved"])
	assert.Equal(t, int64(12), stats.RecentCasesWeek)
}

func TestEngine_ClockOption(t *testing.T) {
	fixed := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	repo := memstore.NewCaseStore()
	engine := New(repo, WithClock(func() time.Time { return fixed }))

	id, err := engine.StoreCase(context.Background(), artFacts(3), nil, nil, "auto_approved")
	require.NoError(t, err)

	c, ok, err := repo.GetCase(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, c.Timestamp.Equal(fixed))
}
