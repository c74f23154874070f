// Package vendorresolver implements C5: normalizing an extracted vendor
// name, exact-alias lookup, and fuzzy scoring against a vendor catalog.
package vendorresolver

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// businessSuffixes are stripped from the end of a normalized name
// (spec.md §4.5 step 1). Each is compared against the whole last token,
// repeatedly, so the order of this list does not affect the result.
var businessSuffixes = []string{
	"INCORPORATED", "CORPORATION", "COMPANY", "LIMITED",
	"LLC", "LLP", "LTD", "INC", "CORP", "CO", "DBA", "PC", "LP",
}

// Normalize uppercases, NFC-normalizes, strips business suffixes and
// punctuation (keeping hyphens), and collapses whitespace.
func Normalize(name string) string {
	s := norm.NFC.String(name)
	s = strings.ToUpper(s)
	s = stripPunctuationKeepHyphens(s)
	s = collapseWhitespace(s)
	s = stripTrailingSuffixes(s)
	s = collapseWhitespace(s)
	return s
}

func stripPunctuationKeepHyphens(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '-' || r == ' ':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripTrailingSuffixes(s string) string {
	tokens := strings.Fields(s)
	for {
		if len(tokens) == 0 {
			break
		}
		last := tokens[len(tokens)-1]
		stripped := false
		for _, suffix := range businessSuffixes {
			if last == suffix {
				tokens = tokens[:len(tokens)-1]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.Join(tokens, " ")
}

// Tokenize splits a normalized name into its significant tokens.
func Tokenize(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}
