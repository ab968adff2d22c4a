// Package search folds names into a comparable form for student lookup.
package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizePersonName normalizes a name for comparison (lowercase, no diacritics, spaces for dashes).
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", " ")
	return strings.Join(strings.Fields(name), " ")
}

// MatchesQuery reports whether every word of query appears in one of the fields.
// An empty query matches everything.
func MatchesQuery(query string, fields ...string) bool {
	words := strings.Fields(NormalizePersonName(query))
	if len(words) == 0 {
		return true
	}

	normalized := make([]string, len(fields))
	for i, f := range fields {
		normalized[i] = NormalizePersonName(f)
	}

	for _, w := range words {
		found := false
		for _, f := range normalized {
			if strings.Contains(f, w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
