// Package token implements the inverted n-gram indices used by the package
// search engine: a generic weighted TokenIndex for text fields and a
// NameIndex specialised for short package identifiers.
package token

import (
	"strings"
	"unicode"
)

const (
	minWordLength = 2
	minNgram      = 2
	maxNgram      = 3
)

// SplitWords breaks text into lowercased words, splitting on non-alphanumeric
// boundaries and camelCase humps so that API symbols like "readAsBytes"
// produce searchable parts.
func SplitWords(text string) []string {
	var sb strings.Builder
	sb.Grow(len(text) + 8)
	var prev rune
	for _, r := range text {
		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			sb.WriteByte(' ')
		}
		sb.WriteRune(r)
		prev = r
	}
	fields := strings.FieldsFunc(strings.ToLower(sb.String()), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := fields[:0]
	for _, w := range fields {
		if len(w) >= minWordLength {
			words = append(words, w)
		}
	}
	return words
}

// tokenize returns the word set of text with per-token weights in (0, 1],
// normalised by the most frequent token.
func tokenize(text string) map[string]float64 {
	words := SplitWords(text)
	if len(words) == 0 {
		return nil
	}
	counts := make(map[string]int, len(words))
	maxCount := 0
	for _, w := range words {
		counts[w]++
		if counts[w] > maxCount {
			maxCount = counts[w]
		}
	}
	weights := make(map[string]float64, len(counts))
	for w, c := range counts {
		weights[w] = float64(c) / float64(maxCount)
	}
	return weights
}

// ngramSet returns all substrings of w with lengths minNgram..maxNgram.
// Words shorter than minNgram yield the word itself.
func ngramSet(w string) map[string]struct{} {
	grams := make(map[string]struct{})
	if len(w) < minNgram {
		grams[w] = struct{}{}
		return grams
	}
	for n := minNgram; n <= maxNgram && n <= len(w); n++ {
		for i := 0; i+n <= len(w); i++ {
			grams[w[i:i+n]] = struct{}{}
		}
	}
	return grams
}
