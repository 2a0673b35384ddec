package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// caseIDLen is the number of hex characters in a case id.
const caseIDLen = 12

// NormalizeFacts lowers a fact snapshot into the canonical form shared
// by hashing and persistence: timestamps become RFC3339 strings and
// nested values are normalized recursively. The same record always
// normalizes to the same bytes, which is what makes case ids stable.
func NormalizeFacts(facts map[string]any) map[string]any {
	out := make(map[string]any, len(facts))
	for k, v := range facts {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		return NormalizeFacts(x)
	}
	return v
}

// CaseID derives the content hash used as the idempotent-upsert key:
// identical facts, rules and actions always produce the same id.
// Map keys are sorted by the JSON encoder, rule and action lists are
// sorted here, so ordering differences never change the id.
func CaseID(facts map[string]any, rulesApplied, actionsTaken []string) (string, error) {
	rules := append([]string(nil), rulesApplied...)
	actions := append([]string(nil), actionsTaken...)
	sort.Strings(rules)
	sort.Strings(actions)

	payload := struct {
		Facts   map[string]any `json:"facts"`
		Rules   []string       `json:"rules"`
		Actions []string       `json:"actions"`
	}{
		Facts:   NormalizeFacts(facts),
		Rules:   rules,
		Actions: actions,
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode case content: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:caseIDLen], nil
}
