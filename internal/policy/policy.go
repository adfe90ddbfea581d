// Package policy defines named retrieval policies and the relevance scorer
// that turns raw per-candidate signals into a ranking score.
package policy

import (
	"sort"
	"strings"
)

// Policy is a named, immutable scoring configuration. The three weights are
// independent linear terms; they need not sum to 1.
type Policy struct {
	Name             string
	Description      string
	SemanticWeight   float64
	KeywordWeight    float64
	ImportanceWeight float64
	// RecencyHalfLifeDays is the half-life of the recency signal. Zero or
	// negative disables decay (recency weight pinned to 1).
	RecencyHalfLifeDays float64
	MaxResults          int
	// TimeRangeDays excludes candidates older than this many days. Zero
	// means unlimited.
	TimeRangeDays int
	// AllowedCategories, when non-empty, excludes candidates whose
	// category is not listed.
	AllowedCategories []string
	// ContextBudget caps the characters handed to a downstream consumer.
	ContextBudget int
}

// DefaultName is the fallback policy for absent or unknown names.
const DefaultName = "chat"

var registry = map[string]Policy{
	"chat": {
		Name:                "chat",
		Description:         "balanced retrieval for conversational recall",
		SemanticWeight:      0.6,
		KeywordWeight:       0.25,
		ImportanceWeight:    0.15,
		RecencyHalfLifeDays: 30,
		MaxResults:          8,
		ContextBudget:       4000,
	},
	"research": {
		Name:                "research",
		Description:         "broad recall favoring exact keyword matches",
		SemanticWeight:      0.5,
		KeywordWeight:       0.35,
		ImportanceWeight:    0.15,
		RecencyHalfLifeDays: 90,
		MaxResults:          20,
		ContextBudget:       12000,
	},
	"briefing": {
		Name:                "briefing",
		Description:         "recent high-importance memories for a daily digest",
		SemanticWeight:      0.4,
		KeywordWeight:       0.2,
		ImportanceWeight:    0.4,
		RecencyHalfLifeDays: 3,
		MaxResults:          10,
		TimeRangeDays:       7,
		ContextBudget:       6000,
	},
	"timeline": {
		Name:                "timeline",
		Description:         "freshness-first recall of the last month",
		SemanticWeight:      0.5,
		KeywordWeight:       0.3,
		ImportanceWeight:    0.1,
		RecencyHalfLifeDays: 2,
		MaxResults:          15,
		TimeRangeDays:       30,
		ContextBudget:       6000,
	},
}

// Lookup returns the policy for name, matched case-insensitively. Unknown
// or empty names fall back to the default policy; Lookup never fails.
func Lookup(name string) Policy {
	if p, ok := registry[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p
	}
	return registry[DefaultName]
}

// Names returns the registered policy names.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
