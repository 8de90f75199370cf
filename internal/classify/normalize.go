package classify

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents builds the diacritic-removal chain. transform.Chain
// values carry per-run state, so each caller gets its own; Normalize
// runs on many goroutines at once during classification.
func stripAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize lowercases text and strips diacritics, so that "Gênero
// Alimentício" and "genero alimenticio" compare equal.
func Normalize(s string) string {
	out, _, err := transform.String(stripAccents(), strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}

// Tokenize splits normalized text into word tokens. Punctuation and
// digits separate tokens but are not kept.
func Tokenize(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
