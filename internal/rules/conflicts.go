package rules

import (
	"fmt"
	"regexp"

	"github.com/sandevgo/faltabot/internal/core"
)

// Conflict is an advisory signal about a candidate rule. The detection
// below is regex-based and approximate: it can both over- and
// under-report, so its output is a hint for the author, never a
// correctness guarantee.
type Conflict struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Severity core.Severity `json:"severity"`
	RuleID   string        `json:"rule_id"`
}

const (
	ConflictPriority             = "priority_conflict"
	ConflictSimilarCondition     = "similar_condition"
	ConflictSeverityInconsistent = "severity_inconsistency"
)

var (
	knownVarPattern = regexp.MustCompile(`\b(motivo|duracion|ausencias_ultimo_mes|certificate_uploaded|validation_status)\b`)
	motivoPattern   = regexp.MustCompile(`motivo\s*==\s*['"]([^'"]+)['"]`)
)

// similarityCutoff: conditions sharing more than this fraction of
// their known variables are flagged as similar.
const similarityCutoff = 0.7

// AnalyzeConflicts compares a candidate rule against the existing set.
func AnalyzeConflicts(candidate core.Rule, existing []core.Rule) []Conflict {
	var conflicts []Conflict
	for _, r := range existing {
		if r.ID == candidate.ID {
			continue
		}
		if r.Priority == candidate.Priority {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictPriority,
				Message:  fmt.Sprintf("same priority as rule %q", r.Name),
				Severity: core.SeverityWarning,
				RuleID:   r.ID,
			})
		}
		if conditionsSimilar(candidate.Condition, r.Condition) {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictSimilarCondition,
				Message:  fmt.Sprintf("condition similar to rule %q", r.Name),
				Severity: core.SeverityInfo,
				RuleID:   r.ID,
			})
		}
		if conditionsOverlap(candidate.Condition, r.Condition) && candidate.Severity != r.Severity {
			conflicts = append(conflicts, Conflict{
				Type:     ConflictSeverityInconsistent,
				Message:  fmt.Sprintf("different severity for a case overlapping rule %q", r.Name),
				Severity: core.SeverityWarning,
				RuleID:   r.ID,
			})
		}
	}
	return conflicts
}

// AnalyzeRuleset runs the pairwise analysis over a whole rule set.
// Each pair is reported once, attributed to the later rule.
func AnalyzeRuleset(ruleset []core.Rule) []Conflict {
	var conflicts []Conflict
	for i, r := range ruleset {
		conflicts = append(conflicts, AnalyzeConflicts(r, ruleset[:i])...)
	}
	return conflicts
}

// conditionsSimilar checks variable overlap via Jaccard similarity
// over the well-known fact names.
func conditionsSimilar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	varsA := varSet(a)
	varsB := varSet(b)

	union := make(map[string]struct{}, len(varsA)+len(varsB))
	for v := range varsA {
		union[v] = struct{}{}
	}
	for v := range varsB {
		union[v] = struct{}{}
	}
	if len(union) == 0 {
		return false
	}

	shared := 0
	for v := range varsA {
		if _, ok := varsB[v]; ok {
			shared++
		}
	}
	return float64(shared)/float64(len(union)) > similarityCutoff
}

// conditionsOverlap flags two conditions that pin the same motive
// value and therefore can both apply to one record.
func conditionsOverlap(a, b string) bool {
	motivesA := motivoPattern.FindAllStringSubmatch(a, -1)
	motivesB := motivoPattern.FindAllStringSubmatch(b, -1)
	for _, ma := range motivesA {
		for _, mb := range motivesB {
			if ma[1] == mb[1] {
				return true
			}
		}
	}
	return false
}

func varSet(condition string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range knownVarPattern.FindAllString(condition, -1) {
		out[m] = struct{}{}
	}
	return out
}
