// Package textnorm normalizes captured text into a stable canonical form
// and fingerprints it for deduplication. Captured pages embed timestamps,
// session IDs and markup noise that would otherwise make substantively
// identical content hash differently.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	scriptRe   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe    = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	noscriptRe = regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?</noscript>`)
	commentRe  = regexp.MustCompile(`(?s)<!--.*?-->`)

	// Volatile attributes carry generated class names, inline styles and
	// framework state that changes between page loads.
	attrRe = regexp.MustCompile(`(?i)\s(?:id|class|style|data-[a-z0-9_-]+)\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	tagRe  = regexp.MustCompile(`<[^>]*>`)

	isoRe   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[t ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:z|[+-]\d{2}:?\d{2})?`)
	dateRe  = regexp.MustCompile(`\b\d{1,4}/\d{1,2}/\d{1,4}\b`)
	clockRe = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?(?:\s?[ap]m)?\b`)
	epochRe = regexp.MustCompile(`\b\d{13,}\b`)
	uuidRe  = regexp.MustCompile(`\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)

	spaceRe = regexp.MustCompile(`\s+`)
)

// Canonicalize strips markup and volatile substrings from raw captured
// text and returns a stable lowercase form. Pure function; the output is
// stable across process restarts so stored fingerprints stay valid.
func Canonicalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.ToLower(s)

	s = commentRe.ReplaceAllString(s, " ")
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = noscriptRe.ReplaceAllString(s, " ")
	s = attrRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")

	s = isoRe.ReplaceAllString(s, " ")
	s = dateRe.ReplaceAllString(s, " ")
	s = clockRe.ReplaceAllString(s, " ")
	s = epochRe.ReplaceAllString(s, " ")
	s = uuidRe.ReplaceAllString(s, " ")

	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Fingerprint returns the SHA-256 digest of canonical text as lowercase
// hex. Used as the dedup key for (owner, fingerprint) uniqueness.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
