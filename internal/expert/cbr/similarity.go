package cbr

import (
	"math"
	"sort"
)

// closeMatchDelta is the tight threshold below which a continuous
// feature counts as "matching" when reporting neighbor evidence.
const closeMatchDelta = 0.1

// Similarity computes the weighted similarity of two feature vectors,
// in [0,1]. Categorical features contribute 1 or 0 on exact match;
// continuous features contribute 1 − |a−b|/max(a,b,1). Features absent
// from either vector are excluded from both numerator and denominator,
// so a sparse vector is not penalized for what it does not know.
// The computation is symmetric in its two vector arguments.
func Similarity(weights Weights, a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Accumulate in sorted feature order: float addition is not
	// associative, and map iteration order would make the last ULP of
	// the score vary between calls.
	var score, totalWeight float64
	for _, feature := range sortedFeatures(weights) {
		va, okA := a[feature]
		vb, okB := b[feature]
		if !okA || !okB {
			continue
		}
		score += featureSimilarity(feature, va, vb) * weights[feature]
		totalWeight += weights[feature]
	}

	if totalWeight == 0 {
		return 0
	}
	return score / totalWeight
}

func featureSimilarity(feature string, a, b float64) float64 {
	if _, ok := categorical[feature]; ok {
		if a == b {
			return 1
		}
		return 0
	}
	// max(a, b, 1) guards the zero denominator.
	return 1 - math.Abs(a-b)/math.Max(math.Max(a, b), 1)
}

// MatchingFeatures lists the features two vectors agree closely on:
// exact match for categorical, difference under closeMatchDelta for
// continuous. Output order is deterministic.
func MatchingFeatures(weights Weights, a, b map[string]float64) []string {
	var out []string
	for _, feature := range sortedFeatures(weights) {
		va, okA := a[feature]
		vb, okB := b[feature]
		if !okA || !okB {
			continue
		}
		if _, ok := categorical[feature]; ok {
			if va == vb {
				out = append(out, feature)
			}
			continue
		}
		if math.Abs(va-vb) < closeMatchDelta {
			out = append(out, feature)
		}
	}
	return out
}

func sortedFeatures(weights Weights) []string {
	names := make([]string, 0, len(weights))
	for feature := range weights {
		names = append(names, feature)
	}
	sort.Strings(names)
	return names
}
