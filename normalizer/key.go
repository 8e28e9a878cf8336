package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeKey turns a page label such as "Número de RUC:" into "numero_de_ruc".
// The result is stable under repeated application.
func NormalizeKey(label string) string {
	folded := foldDiacritics(label)

	// Drop punctuation, keep letters, digits, underscores and whitespace
	stripped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, folded)

	key := strings.ToLower(strings.Join(strings.Fields(stripped), " "))
	key = strings.ReplaceAll(key, " ", "_")
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	return strings.Trim(key, "_")
}

func foldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
