package memory

import "math"

// Importance weights. Each term is independently optional: a signal whose
// source field is absent from the context contributes zero.
const (
	emotionalWeight = 0.3
	noveltyWeight   = 0.2
	revenueWeight   = 0.3
	leadScoreWeight = 0.2

	// revenueNormalizer caps the revenue-impact signal at $10k.
	revenueNormalizer = 10_000.0

	// PromotionThreshold must be strictly exceeded for an entry to graduate
	// out of short-term memory.
	PromotionThreshold = 0.7
)

// Importance computes the consolidation score for a short-term entry.
// similarCount is how many related records the long-term tier already holds
// for the entry's lead; pass a negative value when no lead is identified and
// the novelty term is skipped entirely.
func Importance(context map[string]any, similarCount int) float64 {
	score := 0.0

	if s, ok := floatField(context, "sentiment"); ok {
		score += math.Abs(s) * emotionalWeight
	}

	if similarCount >= 0 {
		capped := similarCount
		if capped > 10 {
			capped = 10
		}
		score += (1.0 - float64(capped)/10.0) * noveltyWeight
	}

	if r, ok := floatField(context, "revenue_impact"); ok {
		score += math.Min(r/revenueNormalizer, 1.0) * revenueWeight
	}
	if l, ok := floatField(context, "lead_score"); ok {
		score += l * leadScoreWeight
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func floatField(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
