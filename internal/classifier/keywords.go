package classifier

import (
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeywordMatcher finds guideline dictionary terms in document text. Matching
// is case- and accent-insensitive over the normalized dictionary.
type KeywordMatcher struct {
	matcher *ahocorasick.Matcher
	terms   []string
}

// NewKeywordMatcher builds a matcher from the guideline keyword dictionary.
// Returns nil for an empty dictionary.
func NewKeywordMatcher(terms []string) *KeywordMatcher {
	dict := make([]string, 0, len(terms))
	kept := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		dict = append(dict, normalizeForMatch(term))
		kept = append(kept, term)
	}
	if len(dict) == 0 {
		return nil
	}

	return &KeywordMatcher{
		matcher: ahocorasick.NewStringMatcher(dict),
		terms:   kept,
	}
}

// Match returns the dictionary terms present in the text, in dictionary
// order, each at most once.
func (m *KeywordMatcher) Match(text string) []string {
	hits := m.matcher.Match([]byte(normalizeForMatch(text)))

	matched := make([]string, 0, len(hits))
	seen := make(map[int]bool, len(hits))
	for _, idx := range hits {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		matched = append(matched, m.terms[idx])
	}
	return matched
}

// normalizeForMatch lowercases and strips diacritics so "Sécurité" matches
// a "securite" dictionary entry.
func normalizeForMatch(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}
