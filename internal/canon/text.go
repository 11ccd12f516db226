package canon

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes to NFD, drops combining marks, recomposes.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold canonicalizes free text for comparison: accents removed, lowercased,
// whitespace collapsed. Both sides of every tag/name comparison must go
// through here, otherwise accented upstream values silently stop matching.
func Fold(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		out = s
	}
	return collapseSpaces(strings.ToLower(strings.TrimSpace(out)))
}

// FoldKey is Fold with all interior whitespace removed, used for field-name
// keys where upstream spellings disagree about spacing.
func FoldKey(s string) string {
	return strings.Join(strings.Fields(Fold(s)), "")
}

// DigitsOnly strips everything but ASCII digits. Property codes arrive both
// bare ("1025") and prefixed ("PH1025"); caches key on both forms.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
