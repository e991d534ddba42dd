package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// toASCII decomposes accented letters and drops every non-ASCII rune left over.
var toASCII = transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(func(r rune) bool {
	return r > unicode.MaxASCII
})))

// abbreviation expansions, applied in order. Each pattern is anchored on word
// boundaries so "PCT" inside a longer token is left alone.
var abbreviations = []struct {
	pattern *regexp.Regexp
	word    string
}{
	{regexp.MustCompile(`\bPCT\b`), "PACOTE"},
	{regexp.MustCompile(`\bPCTE\b`), "PACOTE"},
	{regexp.MustCompile(`\bPTA\b`), "PAULISTA"},
	{regexp.MustCompile(`\bEMB\.?\b`), "EMBALADA"},
}

var (
	// everything but letters, digits and '.' separates words before the
	// abbreviation table runs, so "_" splits tokens the same way "-" does
	separators = regexp.MustCompile(`[^A-Z0-9.]`)
	nonAlnum   = regexp.MustCompile(`[^A-Z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeName canonicalizes a free-text product name so that two spellings of
// the same product compare equal: accents stripped, upper case, known
// abbreviations expanded, punctuation replaced by spaces, whitespace collapsed.
//
// The result only contains A-Z, 0-9 and single spaces, so NormalizeName is
// idempotent.
func NormalizeName(name string) string {
	s, _, err := transform.String(toASCII, name)
	if err != nil {
		// transform only fails on invalid state; fall back to a rune filter
		s = strings.Map(func(r rune) rune {
			if r > unicode.MaxASCII {
				return -1
			}
			return r
		}, name)
	}
	s = strings.ToUpper(s)
	s = separators.ReplaceAllString(s, " ")
	for _, a := range abbreviations {
		s = a.pattern.ReplaceAllString(s, a.word)
	}
	s = nonAlnum.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
