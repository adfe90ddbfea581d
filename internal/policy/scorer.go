package policy

import "math"

// Signals are the raw per-candidate inputs to the relevance scorer.
type Signals struct {
	Semantic   float64 // vector similarity in [0,1]
	Keyword    float64 // keyword relevance in [0,1]
	Importance float64 // clamped to [0,1] before use
	AgeDays    float64 // candidate age at query time
}

// Score applies a policy to raw signals. Recency scales the weighted sum
// by a factor between 0.8 and 1 so freshness cannot dominate relevance:
//
//	raw   = semantic*ws + keyword*wk + importance*wi
//	final = raw * (0.8 + 0.2 * 0.5^(age/halfLife))
func Score(sig Signals, p Policy) float64 {
	importance := sig.Importance
	if importance < 0 {
		importance = 0
	} else if importance > 1 {
		importance = 1
	}

	recency := 1.0
	if p.RecencyHalfLifeDays > 0 {
		recency = math.Pow(0.5, sig.AgeDays/p.RecencyHalfLifeDays)
	}

	raw := sig.Semantic*p.SemanticWeight + sig.Keyword*p.KeywordWeight + importance*p.ImportanceWeight
	return raw * (0.8 + 0.2*recency)
}

// Allows reports whether a candidate passes the policy's category and time
// range filters. Filtering happens before scoring and ranking.
func Allows(p Policy, category string, createdAt, now int64) bool {
	if len(p.AllowedCategories) > 0 {
		ok := false
		for _, c := range p.AllowedCategories {
			if c == category {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if p.TimeRangeDays > 0 {
		cutoff := now - int64(p.TimeRangeDays)*86400
		if createdAt < cutoff {
			return false
		}
	}
	return true
}
