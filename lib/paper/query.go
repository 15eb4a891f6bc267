package paper

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[a-zA-Z0-9][a-zA-Z0-9+\-]{1,}`)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"that": true, "this": true, "into": true, "using": true, "use": true,
	"what": true, "which": true, "when": true, "where": true, "how": true,
	"does": true, "are": true, "can": true, "your": true, "about": true,
}

const maxQueryTerms = 24

// BuildUpstreamQuery turns a free-text research context into a stable
// upstream query string: lowercase word tokens, stop-worded, deduped in
// first-occurrence order, capped at 24 terms. If every token is a stop
// word (or there are no tokens at all), it falls back to the first 300
// characters of the original context. That fallback is a character
// slice, not a word boundary — preserved as-is from the source this was
// distilled from.
func BuildUpstreamQuery(context string) string {
	terms := wordPattern.FindAllString(context, -1)

	selected := make([]string, 0, maxQueryTerms)
	seen := make(map[string]bool, maxQueryTerms)

	for _, term := range terms {
		lower := strings.ToLower(term)
		if stopWords[lower] || seen[lower] {
			continue
		}
		seen[lower] = true
		selected = append(selected, lower)
		if len(selected) >= maxQueryTerms {
			break
		}
	}

	if len(selected) > 0 {
		return strings.Join(selected, " ")
	}

	runes := []rune(context)
	if len(runes) <= 300 {
		return context
	}
	return string(runes[:300])
}

// ContentHash is a SHA-256 hex digest over trim(title) + "\n\n" +
// trim(abstract), stable under whitespace-edge trimming and used as the
// invalidation key for the embedding cache.
func ContentHash(title, abstract string) string {
	payload := strings.TrimSpace(title) + "\n\n" + strings.TrimSpace(abstract)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// BuildEmbeddingText builds the text to embed for a candidate: both
// fields joined when both are present, whichever is non-empty
// otherwise, or "" to signal the candidate should be skipped.
func BuildEmbeddingText(title, abstract string) string {
	trimmedTitle := strings.TrimSpace(title)
	trimmedAbstract := strings.TrimSpace(abstract)

	if trimmedTitle != "" && trimmedAbstract != "" {
		return trimmedTitle + "\n\n" + trimmedAbstract
	}
	if trimmedTitle != "" {
		return trimmedTitle
	}
	return trimmedAbstract
}
