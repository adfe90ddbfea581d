package search

import (
	"regexp"
	"strings"

	"github.com/recallmesh/recallmesh/internal/models"
)

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// Tokenize lowercases the query, strips punctuation, splits on whitespace
// and discards tokens of two characters or fewer.
func Tokenize(query string) []string {
	cleaned := punctRe.ReplaceAllString(strings.ToLower(query), " ")
	fields := strings.Fields(cleaned)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// tokenMatcher matches a token on word boundaries.
func tokenMatcher(token string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(token) + `\b`)
}

// KeywordScore computes the keyword relevance of a memory for the query.
// Per token: 0.4 for a word-boundary match in the title, 0.3 in the
// summary, 0.2 in the content; the sum is divided by the token count. A
// full-phrase substring match adds 0.2 (title) or 0.15 (summary). The
// total is then multiplied by (1 + 0.3*coverage) where coverage is the
// fraction of tokens matching anywhere, and clamped to [0,1].
func KeywordScore(tokens []string, phrase string, m *models.Memory) float64 {
	if len(tokens) == 0 {
		return 0
	}

	title := strings.ToLower(m.Title)
	summary := strings.ToLower(m.Summary)
	content := strings.ToLower(m.Content)
	url := strings.ToLower(m.URL)

	score := 0.0
	matched := 0
	for _, tok := range tokens {
		re := tokenMatcher(tok)
		hit := false
		if re.MatchString(title) {
			score += 0.4
			hit = true
		}
		if re.MatchString(summary) {
			score += 0.3
			hit = true
		}
		if re.MatchString(content) {
			score += 0.2
			hit = true
		}
		if !hit && strings.Contains(url, tok) {
			hit = true
		}
		if hit {
			matched++
		}
	}
	score /= float64(len(tokens))

	phrase = strings.ToLower(strings.TrimSpace(phrase))
	if phrase != "" {
		if strings.Contains(title, phrase) {
			score += 0.2
		}
		if strings.Contains(summary, phrase) {
			score += 0.15
		}
	}

	coverage := float64(matched) / float64(len(tokens))
	score *= 1 + 0.3*coverage

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
