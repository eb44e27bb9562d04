package similarity

import (
	"context"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexical scores TF-IDF cosine similarity fitted on just the pair being compared
type Lexical struct{}

// NewLexical creates the lexical provider
func NewLexical() Lexical {
	return Lexical{}
}

// Similarity never fails
func (Lexical) Similarity(_ context.Context, a, b string) (float64, error) {
	return TFIDFCosine(a, b), nil
}

// TFIDFCosine vectorizes a and b with raw term counts and smoothed idf
// (ln((1+n)/(1+df)) + 1), l2-normalizes both and returns their cosine.
func TFIDFCosine(a, b string) float64 {
	tfA, tfB := termCounts(Tokens(a)), termCounts(Tokens(b))
	if len(tfA) == 0 || len(tfB) == 0 {
		return 0
	}

	const docs = 2.0
	idf := func(term string) float64 {
		df := 0.0
		if tfA[term] > 0 {
			df++
		}
		if tfB[term] > 0 {
			df++
		}
		return math.Log((1+docs)/(1+df)) + 1
	}

	// Sorted terms keep the floating-point sums reproducible
	terms := make([]string, 0, len(tfA)+len(tfB))
	for t := range tfA {
		terms = append(terms, t)
	}
	for t := range tfB {
		if tfA[t] == 0 {
			terms = append(terms, t)
		}
	}
	sort.Strings(terms)

	var dot, normA, normB float64
	for _, t := range terms {
		w := idf(t)
		wa := float64(tfA[t]) * w
		wb := float64(tfB[t]) * w
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Tokens lower-cases text and returns its runs of two or more word characters
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_')
	})

	tokens := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}
