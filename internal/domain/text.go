package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText folds text for comparison: NFKC, lower case, 'ё' as 'е',
// whitespace runs collapsed to one space, surrounding punctuation trimmed.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}

// ContainsNormalized reports whether needle occurs in haystack after both are normalized.
// An empty needle never matches.
func ContainsNormalized(haystack, needle string) bool {
	n := NormalizeText(needle)
	if n == "" {
		return false
	}
	return strings.Contains(NormalizeText(haystack), n)
}
