package pipeline

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName maps a column header onto the key used for schema matching.
// "Burning rate  [Failures/year]" and "burning_rate_failures_year" share a key.
func NormalizeName(name string) string {
	folded := cases.Fold().String(norm.NFKC.String(strings.TrimSpace(name)))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSep := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
