// Package expert wires the decision core together: the safe expression
// evaluator, the forward-chaining inference engine and the case-based
// reasoning engine, plus the orchestrator that merges their outputs
// into one decision.
package expert

import (
	"context"
	"time"

	"github.com/sandevgo/faltabot/internal/core"
	"github.com/sandevgo/faltabot/internal/expert/cbr"
	"github.com/sandevgo/faltabot/internal/expert/explain"
	"github.com/sandevgo/faltabot/internal/expert/infer"
	"github.com/sandevgo/faltabot/internal/rules"
	"github.com/sandevgo/faltabot/pkg/log"
)

// Decision is the merged output of one processed absence record.
type Decision struct {
	CaseID              string                `json:"case_id"`
	Outcome             string                `json:"outcome"`
	Inference           *core.InferenceResult `json:"inference_result"`
	Recommendation      *core.Recommendation  `json:"cbr_analysis"`
	Explanation         string                `json:"explanation"`
	RequiresHumanReview bool                  `json:"requires_human_review"`
	RiskLevel           string                `json:"risk_level"`
	NextActions         []string              `json:"next_actions"`
	ProcessingTime      time.Duration         `json:"processing_time"`

	// StoreErr is set when the decision was computed but case memory
	// could not persist it: a persistence outage degrades to "decision
	// without learning", never "no decision".
	StoreErr error `json:"-"`
}

// System is the integrated expert system.
type System struct {
	engine    *infer.Engine
	cases     *cbr.Engine
	explainer *explain.Generator
}

func NewSystem(engine *infer.Engine, cases *cbr.Engine) *System {
	return &System{
		engine:    engine,
		cases:     cases,
		explainer: explain.NewGenerator(),
	}
}

// Cases exposes the CBR engine for feedback and stats collaborators.
func (s *System) Cases() *cbr.Engine { return s.cases }

// ProcessAbsence runs the full cycle for one record: CBR analysis,
// forward chaining, outcome determination, case storage and the
// rendered explanation.
func (s *System) ProcessAbsence(ctx context.Context, snapshot *rules.Snapshot, facts map[string]any, audience explain.Audience) (*Decision, error) {
	logger := log.FromCtx(ctx)
	started := time.Now()

	// CBR first: the recommendation must reflect prior cases only,
	// never the case being decided right now.
	recommendation, err := s.cases.Recommend(ctx, facts)
	if err != nil {
		// Retrieval failure costs the statistical evidence, not the
		// decision.
		logger.Warn().Err(err).Msg("case retrieval failed, deciding without recommendations")
		recommendation = &core.Recommendation{Reasoning: "case memory unavailable"}
	}

	result, err := s.engine.Run(ctx, snapshot.Rules(), facts)
	if err != nil {
		return nil, err
	}

	outcome := determineOutcome(result)

	decision := &Decision{
		Outcome:             outcome,
		Inference:           result,
		Recommendation:      recommendation,
		RequiresHumanReview: requiresHumanReview(result, recommendation, outcome),
		RiskLevel:           assessRisk(result),
		NextActions:         nextActions(outcome),
	}

	rulesApplied := make([]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		rulesApplied = append(rulesApplied, step.RuleID)
	}
	caseID, err := s.cases.StoreCase(ctx, facts, rulesApplied, result.ActionsTaken, outcome)
	if err != nil {
		logger.Error().Err(err).Msg("failed to store case, decision returned without learning")
		decision.StoreErr = err
	}
	decision.CaseID = caseID

	decision.Explanation = s.explainer.Explain(result, recommendation, explain.DefaultOptions(audience))
	decision.ProcessingTime = time.Since(started)

	logger.Info().
		Str("case_id", caseID).
		Str("outcome", outcome).
		Int("rules_fired", len(result.Steps)).
		Dur("elapsed", decision.ProcessingTime).
		Msg("absence request processed")
	return decision, nil
}

func determineOutcome(result *core.InferenceResult) string {
	facts := result.FinalFacts
	if applied, _ := facts["sancion_aplicada"].(bool); applied {
		return core.OutcomeSanctioned
	}
	if required, _ := facts["requiere_aprobacion"].(bool); required {
		return core.OutcomeRequiresApproval
	}
	if len(result.Observations) > 0 {
		return core.OutcomeWithConditions
	}
	return core.OutcomeAutoApproved
}

func requiresHumanReview(result *core.InferenceResult, rec *core.Recommendation, outcome string) bool {
	if outcome == core.OutcomeRequiresApproval || outcome == core.OutcomeSanctioned {
		return true
	}
	for _, obs := range result.Observations {
		if obs.Severity == core.SeverityError {
			return true
		}
	}
	// Strong historical disagreement with the rule outcome is worth a
	// second pair of eyes.
	return rec != nil && rec.Confidence > 0.7 &&
		rec.PredictedOutcome != "" && rec.PredictedOutcome != outcome
}

func assessRisk(result *core.InferenceResult) string {
	if applied, _ := result.FinalFacts["sancion_aplicada"].(bool); applied {
		return "high"
	}
	for _, obs := range result.Observations {
		if obs.Severity == core.SeverityError {
			return "high"
		}
	}
	for _, obs := range result.Observations {
		if obs.Severity == core.SeverityWarning {
			return "medium"
		}
	}
	if required, _ := result.FinalFacts["requiere_aprobacion"].(bool); required {
		return "medium"
	}
	return "low"
}

func nextActions(outcome string) []string {
	switch outcome {
	case core.OutcomeSanctioned:
		return []string{"notify the employee", "record the sanction with HR"}
	case core.OutcomeRequiresApproval:
		return []string{"escalate to the supervisor for approval"}
	case core.OutcomeWithConditions:
		return []string{"approve and track the pending observations"}
	}
	return []string{"approve automatically"}
}
