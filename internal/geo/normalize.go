package geo

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"
)

// Normalizer cleans free-text address fragments before they are indexed or compared.
type Normalizer struct {
	// FoldASCII transliterates the text to ASCII before cleaning. Useful when the
	// reference set is romanized but device rows carry native script.
	FoldASCII bool
}

// Normalize lowercases s, drops every rune that is not a letter, digit, underscore or
// whitespace, and trims the result.
func (n Normalizer) Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	if n.FoldASCII {
		s = unidecode.Unidecode(s)
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Normalize applies the default Normalizer.
func Normalize(s string) string {
	return Normalizer{}.Normalize(s)
}
