// Package similarity scores replayed outputs against ground truth with
// term-frequency vectors and row-wise cosine similarity.
package similarity

import (
	"math"
	"strings"
	"unicode"
)

// Scores fits a term-frequency vocabulary on the ground-truth column,
// vectorizes both columns through it, and returns the cosine similarity
// per row, aligned to input order and bounded to [0, 1].
//
// A row whose vectors share no vocabulary scores 0. An empty vocabulary
// (empty or single-row input with no usable tokens) scores 0, never
// panics: downstream always receives a serializable float.
func Scores(groundTruth, test []string) []float64 {
	n := len(groundTruth)
	if len(test) < n {
		n = len(test)
	}
	vocab := buildVocabulary(groundTruth)
	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		gt := vectorize(groundTruth[i], vocab)
		tv := vectorize(test[i], vocab)
		scores[i] = cosine(gt, tv)
	}
	return scores
}

func buildVocabulary(docs []string) map[string]int {
	vocab := make(map[string]int)
	for _, doc := range docs {
		for _, tok := range tokenize(doc) {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}
	return vocab
}

// tokenize lowercases and splits on non-word runes, dropping single-rune
// tokens.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	toks := fields[:0]
	for _, f := range fields {
		if len(f) > 1 {
			toks = append(toks, f)
		}
	}
	return toks
}

func vectorize(doc string, vocab map[string]int) []float64 {
	vec := make([]float64, len(vocab))
	for _, tok := range tokenize(doc) {
		if idx, ok := vocab[tok]; ok {
			vec[idx]++
		}
	}
	return vec
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
