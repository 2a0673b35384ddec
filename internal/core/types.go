package core

import (
	"time"
)

const (
	FaltaName          = "FaltaBot"
	FaltaRepositoryURL = "https://github.com/sandevgo/faltabot"
	FaltaVersion       = "0.1.0"
)

// Severity of a rule and of the observations it produces.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// Rule is one user-authored business rule. Immutable once loaded; the
// manager enforces id uniqueness, the engine trusts its input.
type Rule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Condition string `json:"condition"`
	Action    string `json:"action"`
	// Lower priority fires first.
	Priority int      `json:"priority"`
	Severity Severity `json:"severity"`
	// ActivationCondition gates whether the rule is considered at all,
	// independent of Condition.
	ActivationCondition string `json:"activation_condition,omitempty"`
	Explanation         string `json:"explanation,omitempty"`
	CreatedBy           string `json:"created_by,omitempty"`
	CreatedAt           string `json:"created_at,omitempty"`
}

// Observation is one structured note a rule attached to the record.
type Observation struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	RuleID    string    `json:"rule_id"`
	Timestamp time.Time `json:"timestamp"`
}

// InferenceStep records a single rule firing.
type InferenceStep struct {
	RuleID          string         `json:"rule_id"`
	RuleName        string         `json:"rule_name"`
	Condition       string         `json:"condition"`
	ConditionResult bool           `json:"condition_result"`
	Action          string         `json:"action"`
	FactsUsed       map[string]any `json:"facts_used"`
	Timestamp       time.Time      `json:"timestamp"`
}

// HaltReason says why a forward-chaining run stopped.
type HaltReason string

const (
	// HaltFixedPoint: one full scan fired no rule.
	HaltFixedPoint HaltReason = "fixed_point"
	// HaltIterationCap: the safety bound was reached; the partial
	// result is still returned.
	HaltIterationCap HaltReason = "iteration_cap"
)

// InferenceResult is the terminal output of one run. Immutable once
// returned.
type InferenceResult struct {
	RunID        string          `json:"run_id"`
	Conclusions  []string        `json:"conclusions"`
	ActionsTaken []string        `json:"actions_taken"`
	Steps        []InferenceStep `json:"steps"`
	Observations []Observation   `json:"observations"`
	FinalFacts   map[string]any  `json:"final_facts"`
	Halt         HaltReason      `json:"halt"`
	Elapsed      time.Duration   `json:"elapsed"`
}

// Outcome labels produced by the orchestrator.
const (
	OutcomeSanctioned       = "sanctioned"
	OutcomeRequiresApproval = "requires_approval"
	OutcomeWithConditions   = "approved_with_conditions"
	OutcomeAutoApproved     = "auto_approved"
)

// Case is one persisted unit of CBR memory. Only Feedback and
// ExpertValidation may change after creation, and only through human
// review; cases are never deleted.
type Case struct {
	CaseID             string             `json:"case_id"`
	Facts              map[string]any     `json:"facts"`
	RulesApplied       []string           `json:"rules_applied"`
	ActionsTaken       []string           `json:"actions_taken"`
	Outcome            string             `json:"outcome"`
	Feedback           string             `json:"feedback,omitempty"`
	SimilarityFeatures map[string]float64 `json:"similarity_features"`
	Timestamp          time.Time          `json:"timestamp"`
	ExpertValidation   bool               `json:"expert_validation"`
}

// SimilarCase is an ephemeral ranking result owned by the caller of a
// single retrieval.
type SimilarCase struct {
	Case             Case     `json:"case"`
	SimilarityScore  float64  `json:"similarity_score"`
	MatchingFeatures []string `json:"matching_features"`
}

// RecommendationItem is one suggestion synthesized from neighbors.
// Pattern alerts are heuristics, not guarantees.
type RecommendationItem struct {
	Type       string  `json:"type"`
	Suggestion string  `json:"suggestion"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Recommendation aggregates the CBR analysis for one record.
type Recommendation struct {
	Items            []RecommendationItem `json:"recommendations"`
	PredictedOutcome string               `json:"predicted_outcome"`
	Confidence       float64              `json:"confidence"`
	SimilarCases     []SimilarCase        `json:"similar_cases"`
	Reasoning        string               `json:"reasoning"`
}

// RuleExecution is one monitoring log row per rule evaluation.
type RuleExecution struct {
	ID              int64          `json:"id"`
	RunID           string         `json:"run_id"`
	RuleID          string         `json:"rule_id"`
	RuleName        string         `json:"rule_name"`
	ExecutedAt      time.Time      `json:"executed_at"`
	CaseFacts       map[string]any `json:"case_facts"`
	ConditionResult bool           `json:"condition_result"`
	ActionExecuted  string         `json:"action_executed"`
	ElapsedMillis   float64        `json:"execution_time_ms"`
}

// RuleStat is a per-rule aggregate over a monitoring window.
type RuleStat struct {
	RuleID         string    `json:"rule_id"`
	RuleName       string    `json:"rule_name"`
	Executions     int64     `json:"executions"`
	Fired          int64     `json:"fired"`
	AvgElapsedMs   float64   `json:"avg_execution_time_ms"`
	LastExecutedAt time.Time `json:"last_executed_at"`
}
