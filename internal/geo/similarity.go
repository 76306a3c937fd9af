package geo

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/xrash/smetrics"
)

// Similarity scores two normalized strings in [0,1]. Identical strings score 1.
type Similarity func(a, b string) float64

const (
	SimilarityRatcliff    = "ratcliff"
	SimilarityLevenshtein = "levenshtein"
	SimilarityJaroWinkler = "jarowinkler"
)

// SimilarityByName returns the scorer registered under name. An empty name selects Ratcliff.
func SimilarityByName(name string) (Similarity, error) {
	switch canonicalSimilarity(name) {
	case SimilarityRatcliff:
		return Ratcliff, nil
	case SimilarityLevenshtein:
		return Levenshtein, nil
	case SimilarityJaroWinkler:
		return JaroWinkler, nil
	default:
		return nil, fmt.Errorf("geo: unknown similarity %q", name)
	}
}

func canonicalSimilarity(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return SimilarityRatcliff
	}
	return name
}

// Ratcliff is the Ratcliff/Obershelp ratio 2*M/T computed over runes.
// The algorithm is order sensitive on some inputs, so both orders are scored and the
// higher one wins.
func Ratcliff(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := splitRunes(a), splitRunes(b)
	ab := difflib.NewMatcher(ra, rb).Ratio()
	ba := difflib.NewMatcher(rb, ra).Ratio()
	return math.Max(ab, ba)
}

// Levenshtein is 1 - editDistance/longestLength.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1
	}
	n := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(n)
}

// JaroWinkler uses a 0.7 boost threshold and a 4-rune prefix.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	return math.Max(smetrics.JaroWinkler(a, b, 0.7, 4), smetrics.JaroWinkler(b, a, 0.7, 4))
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
