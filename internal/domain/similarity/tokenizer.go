// Package similarity scores how alike two short texts are using TF-IDF
// weighting over a two-document corpus and cosine similarity.
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer turns text into comparable terms. Terms are NFKC normalised and
// case folded, split on anything that is not a letter or digit, and filtered
// against an English stopword list. No stemming is applied.
type Tokenizer struct {
	stopwords map[string]struct{}
}

// NewTokenizer builds a Tokenizer with the default stopword list. Extra words
// are added to it.
func NewTokenizer(extraStopwords ...string) *Tokenizer {
	sw := make(map[string]struct{}, len(defaultStopwords)+len(extraStopwords))
	for _, w := range defaultStopwords {
		sw[w] = struct{}{}
	}
	for _, w := range extraStopwords {
		sw[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: sw}
}

// Tokenize returns the terms of text in order of appearance, duplicates kept.
//
// If stopword removal would discard every term of a non-empty document the
// unfiltered terms are returned, and text made only of symbols falls back to
// its whitespace separated fields. Either way a non-empty document always has
// at least one term, so it is identical to itself.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	// cases.Caser is not safe for concurrent use.
	normalized := cases.Fold().String(norm.NFKC.String(text))

	raw := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(raw) == 0 {
		return strings.Fields(normalized)
	}

	filtered := make([]string, 0, len(raw))
	for _, term := range raw {
		if _, stop := t.stopwords[term]; !stop {
			filtered = append(filtered, term)
		}
	}
	if len(filtered) == 0 {
		return raw
	}
	return filtered
}

// IsStopword reports whether term is filtered out.
func (t *Tokenizer) IsStopword(term string) bool {
	_, ok := t.stopwords[term]
	return ok
}

var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "has", "he",
	"in", "is", "it", "its", "of", "on", "that", "the", "to", "was", "were", "will",
	"with", "this", "but", "they", "have", "had", "what", "when", "where", "who", "which",
	"why", "how", "all", "any", "both", "each", "few", "more", "most", "other", "some", "such",
	"no", "nor", "not", "only", "own", "same", "so", "than", "too", "very", "can", "did",
	"do", "does", "doing", "done", "down", "up", "out", "i", "me", "my", "we", "our",
	"you", "your", "she", "her", "him", "his", "them", "their", "or", "if", "into",
	"about", "just",
}
