package textmetrics

import (
	"errors"
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  double   spaces\tand\ntabs ", "double spaces and tabs"},
		{"It's a coffee-shop.", "its a coffeeshop"},
		{"", ""},
		{"!!!", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestWordErrorRate(t *testing.T) {
	cases := []struct {
		ref  string
		hyp  string
		want float64
	}{
		{"the quick brown fox", "the quick brown fox", 0},
		{"the quick brown fox", "the quick brown", 0.25},
		{"the quick brown fox", "the slow brown fox", 0.25},
		{"the quick brown fox", "the quick brown fox jumps", 0.25},
		{"the quick brown fox", "", 1},
		{"one two", "three four one two", 1},
	}
	for _, c := range cases {
		got, err := WordErrorRate(c.ref, c.hyp)
		if err != nil {
			t.Fatalf("WER(%q, %q): unexpected error: %v", c.ref, c.hyp, err)
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("WER(%q, %q) = %f, want %f", c.ref, c.hyp, got, c.want)
		}
	}
}

func TestWordErrorRateIgnoresCaseAndPunctuation(t *testing.T) {
	got, err := WordErrorRate("The quick brown fox.", "the quick, brown FOX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0 {
		t.Fatalf("expected WER 0 after normalization, got %f", got)
	}
}

func TestCharErrorRate(t *testing.T) {
	// "abc" -> "abd": one substitution over three characters.
	got, err := CharErrorRate("abc", "abd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-1.0/3.0) > 1e-9 {
		t.Fatalf("CER = %f, want 1/3", got)
	}
}

func TestEmptyReference(t *testing.T) {
	if _, err := WordErrorRate("", "anything"); !errors.Is(err, ErrEmptyReference) {
		t.Fatalf("expected ErrEmptyReference, got %v", err)
	}
	if _, err := CharErrorRate("...", "anything"); !errors.Is(err, ErrEmptyReference) {
		t.Fatalf("expected ErrEmptyReference for punctuation-only reference, got %v", err)
	}
}
