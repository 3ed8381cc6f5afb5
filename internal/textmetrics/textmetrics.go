// Package textmetrics computes transcription accuracy metrics. Word and
// character error rates are Levenshtein edit distance over the normalized
// reference, divided by reference length.
package textmetrics

import (
	"errors"
	"strings"
	"unicode"
)

// ErrEmptyReference is returned when the reference text normalizes to
// nothing; error rates are undefined without a reference.
var ErrEmptyReference = errors.New("reference text is empty")

// Normalize lowercases the text, strips punctuation and collapses
// whitespace, so that error rates measure recognition rather than styling.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// WordErrorRate returns the WER of hypothesis against reference. Both inputs
// are normalized first. The result can exceed 1 when the hypothesis contains
// many insertions.
func WordErrorRate(reference, hypothesis string) (float64, error) {
	ref := strings.Fields(Normalize(reference))
	if len(ref) == 0 {
		return 0, ErrEmptyReference
	}
	hyp := strings.Fields(Normalize(hypothesis))
	return float64(levenshtein(ref, hyp)) / float64(len(ref)), nil
}

// CharErrorRate returns the CER of hypothesis against reference, computed
// over runes of the normalized texts (spaces included).
func CharErrorRate(reference, hypothesis string) (float64, error) {
	ref := strings.Split(Normalize(reference), "")
	if len(ref) == 0 {
		return 0, ErrEmptyReference
	}
	hyp := strings.Split(Normalize(hypothesis), "")
	return float64(levenshtein(ref, hyp)) / float64(len(ref)), nil
}

// levenshtein computes edit distance with the classic two-row DP.
func levenshtein(a, b []string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
