// Package join enriches a road table with per-city population and crash
// columns.
package join

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey folds a city name for matching: whitespace is trimmed and
// collapsed, diacritics are removed and case is folded. "Dasmariñas" and
// "DASMARINAS " share a key.
func NormalizeKey(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Fold().String(strings.Join(strings.Fields(stripped), " "))
}
