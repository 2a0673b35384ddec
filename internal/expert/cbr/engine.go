package cbr

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/pkg/log"
)

const (
	// DefaultTopK and DefaultMinSimilarity govern recommendation
	// retrieval unless the caller overrides them.
	DefaultTopK          = 5
	DefaultMinSimilarity = 0.4

	// DefaultRecentLimit caps how much case memory one retrieval scans.
	DefaultRecentLimit = 1000

	// patternAlertThreshold is the confidence above which the advisory
	// "consistent pattern" recommendation is emitted. Heuristic only.
	patternAlertThreshold = 0.8

	// learningActiveMinimum is how many cases the memory needs before
	// its recommendations are considered meaningful.
	learningActiveMinimum = 10
)

// Engine is the case-based reasoning engine: it scores the current
// record against stored cases and synthesizes recommendations from the
// nearest neighbors. Pure computation over the repository's data; safe
// for concurrent use.
type Engine struct {
	repo          core.CaseRepository
	weights       Weights
	recentLimit   int
	topK          int
	minSimilarity float64
	clock         func() time.Time
}

type Option func(*Engine)

func WithWeights(w Weights) Option {
	return func(e *Engine) {
		if len(w) > 0 {
			e.weights = w
		}
	}
}

func WithRecentLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.recentLimit = n
		}
	}
}

func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

func WithMinSimilarity(min float64) Option {
	return func(e *Engine) {
		if min > 0 {
			e.minSimilarity = min
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

func New(repo core.CaseRepository, opts ...Option) *Engine {
	e := &Engine{
		repo:          repo,
		weights:       DefaultWeights(),
		recentLimit:   DefaultRecentLimit,
		topK:          DefaultTopK,
		minSimilarity: DefaultMinSimilarity,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FindSimilar returns up to k stored cases with similarity at or above
// minSimilarity, most similar first. Ties keep insertion order.
func (e *Engine) FindSimilar(ctx context.Context, facts map[string]any, k int, minSimilarity float64) ([]core.SimilarCase, error) {
	cases, err := e.repo.RecentCases(ctx, e.recentLimit)
	if err != nil {
		return nil, &core.StoreError{Op: "recent cases", Err: err}
	}
	if len(cases) == 0 {
		return nil, nil
	}

	current := ExtractFeatures(facts, e.clock())
	var similar []core.SimilarCase
	for _, c := range cases {
		score := Similarity(e.weights, current, c.SimilarityFeatures)
		if score < minSimilarity {
			continue
		}
		similar = append(similar, core.SimilarCase{
			Case:             c,
			SimilarityScore:  score,
			MatchingFeatures: MatchingFeatures(e.weights, current, c.SimilarityFeatures),
		})
	}

	sort.SliceStable(similar, func(i, j int) bool {
		return similar[i].SimilarityScore > similar[j].SimilarityScore
	})
	if len(similar) > k {
		similar = similar[:k]
	}
	return similar, nil
}

// StoreCase persists one processed record into case memory. The id is
// a content hash over the canonical facts/rules/actions encoding, so
// resubmitting an identical case upserts instead of duplicating.
func (e *Engine) StoreCase(ctx context.Context, facts map[string]any, rulesApplied, actionsTaken []string, outcome string) (string, error) {
	normalized := core.NormalizeFacts(facts)
	caseID, err := core.CaseID(facts, rulesApplied, actionsTaken)
	if err != nil {
		return "", err
	}

	c := core.Case{
		CaseID:             caseID,
		Facts:              normalized,
		RulesApplied:       append([]string(nil), rulesApplied...),
		ActionsTaken:       append([]string(nil), actionsTaken...),
		Outcome:            outcome,
		SimilarityFeatures: ExtractFeatures(facts, e.clock()),
		Timestamp:          e.clock(),
	}

	if err := e.repo.UpsertCase(ctx, c); err != nil {
		return "", &core.StoreError{Op: "upsert case", Err: err}
	}
	log.FromCtx(ctx).Debug().Str("case_id", caseID).Str("outcome", outcome).Msg("case stored")
	return caseID, nil
}

// Recommend predicts the most likely outcome for a record by weighted
// vote over the top-k similar cases; vote weight is the similarity
// score. Confidence is the winning vote share of the total similarity
// mass.
func (e *Engine) Recommend(ctx context.Context, facts map[string]any) (*core.Recommendation, error) {
	similar, err := e.FindSimilar(ctx, facts, e.topK, e.minSimilarity)
	if err != nil {
		return nil, err
	}
	if len(similar) == 0 {
		return &core.Recommendation{
			Reasoning: "no sufficiently similar cases on record",
		}, nil
	}

	outcomeVotes := newVoteTally()
	actionVotes := newVoteTally()
	ruleVotes := newVoteTally()

	var totalSimilarity float64
	for _, sc := range similar {
		weight := sc.SimilarityScore
		totalSimilarity += weight
		outcomeVotes.add(sc.Case.Outcome, weight)
		for _, action := range sc.Case.ActionsTaken {
			actionVotes.add(action, weight)
		}
		for _, rule := range sc.Case.RulesApplied {
			ruleVotes.add(rule, weight)
		}
	}

	predicted, predictedVote := outcomeVotes.winner()
	confidence := predictedVote / totalSimilarity

	items := []core.RecommendationItem{{
		Type:       "outcome_prediction",
		Suggestion: fmt.Sprintf("most likely outcome: %s", predicted),
		Confidence: confidence,
		Reasoning:  fmt.Sprintf("based on %d similar cases", len(similar)),
	}}

	if action, vote := actionVotes.winner(); action != "" {
		items = append(items, core.RecommendationItem{
			Type:       "action_suggestion",
			Suggestion: fmt.Sprintf("recommended action: %s", action),
			Confidence: vote / totalSimilarity,
			Reasoning:  "frequent across similar cases",
		})
	}

	if confidence > patternAlertThreshold {
		items = append(items, core.RecommendationItem{
			Type:       "pattern_alert",
			Suggestion: "consistent pattern detected",
			Confidence: confidence,
			Reasoning:  "similar cases resolve to the same outcome; advisory signal, not a guarantee",
		})
	}

	return &core.Recommendation{
		Items:            items,
		PredictedOutcome: predicted,
		Confidence:       confidence,
		SimilarCases:     similar,
		Reasoning: fmt.Sprintf("analysis of %d cases, average similarity %.2f",
			len(similar), totalSimilarity/float64(len(similar))),
	}, nil
}

// UpdateFeedback records human review for a stored case. Only the
// feedback fields change.
func (e *Engine) UpdateFeedback(ctx context.Context, caseID, feedback string, expertValidation bool) error {
	if err := e.repo.UpdateFeedback(ctx, caseID, feedback, expertValidation); err != nil {
		return &core.StoreError{Op: "update feedback", Err: err}
	}
	return nil
}

// LearningStats summarizes the state of case memory.
type LearningStats struct {
	TotalCases          int64            `json:"total_cases"`
	ValidatedCases      int64            `json:"validated_cases"`
	ValidationRate      float64          `json:"validation_rate"`
	RecentCasesWeek     int64            `json:"recent_cases_week"`
	OutcomeDistribution map[string]int64 `json:"outcome_distribution"`
	LearningActive      bool             `json:"learning_active"`
}

func (e *Engine) Stats(ctx context.Context) (*LearningStats, error) {
	total, err := e.repo.CountCases(ctx)
	if err != nil {
		return nil, &core.StoreError{Op: "count cases", Err: err}
	}
	stats := &LearningStats{
		TotalCases:          total,
		OutcomeDistribution: make(map[string]int64),
		LearningActive:      total >= learningActiveMinimum,
	}
	if total == 0 {
		return stats, nil
	}

	cases, err := e.repo.RecentCases(ctx, e.recentLimit)
	if err != nil {
		return nil, &core.StoreError{Op: "recent cases", Err: err}
	}
	weekAgo := e.clock().AddDate(0, 0, -7)
	for _, c := range cases {
		stats.OutcomeDistribution[c.Outcome]++
		if c.ExpertValidation {
			stats.ValidatedCases++
		}
		if c.Timestamp.After(weekAgo) {
			stats.RecentCasesWeek++
		}
	}
	stats.ValidationRate = float64(stats.ValidatedCases) / float64(total)
	return stats, nil
}

// voteTally accumulates weighted votes and breaks ties by first
// appearance, keeping the winner deterministic.
type voteTally struct {
	votes map[string]float64
	order []string
}

func newVoteTally() *voteTally {
	return &voteTally{votes: make(map[string]float64)}
}

func (t *voteTally) add(key string, weight float64) {
	if _, seen := t.votes[key]; !seen {
		t.order = append(t.order, key)
	}
	t.votes[key] += weight
}

func (t *voteTally) winner() (string, float64) {
	var best string
	var bestVote float64
	for _, key := range t.order {
		if t.votes[key] > bestVote {
			best, bestVote = key, t.votes[key]
		}
	}
	return best, bestVote
}
