package similarity

import (
	"math"
	"sort"
)

// corpusSize is the number of documents in every comparison.
const corpusSize = 2

// TermVector maps a term to its TF-IDF weight.
type TermVector map[string]float64

// Magnitude returns the Euclidean norm of the vector.
func (v TermVector) Magnitude() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Terms returns the vector's terms sorted by descending weight, ties broken
// alphabetically.
func (v TermVector) Terms() []string {
	terms := make([]string, 0, len(v))
	for t := range v {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if v[terms[i]] != v[terms[j]] {
			return v[terms[i]] > v[terms[j]]
		}
		return terms[i] < terms[j]
	})
	return terms
}

// Scorer computes cosine similarity between TF-IDF vectors of a reference and
// a candidate text. It holds no per-call state and is safe for concurrent use.
//
// Weights: tf = 1 + ln(count), idf = 1 + ln(1 + N/df) with N = 2.
type Scorer struct {
	tokenizer *Tokenizer
}

// NewScorer returns a Scorer. A nil tokenizer selects the default one.
func NewScorer(tokenizer *Tokenizer) *Scorer {
	if tokenizer == nil {
		tokenizer = NewTokenizer()
	}
	return &Scorer{tokenizer: tokenizer}
}

// Score returns the similarity of reference and candidate in [0, 1]. Empty or
// whitespace-only input scores 0.
func (s *Scorer) Score(reference, candidate string) float64 {
	refVec, candVec := s.Vectorize(reference, candidate)
	return Cosine(refVec, candVec)
}

// Vectorize builds the TF-IDF vectors of both documents over their shared
// two-document corpus.
func (s *Scorer) Vectorize(reference, candidate string) (TermVector, TermVector) {
	refCounts := countTerms(s.tokenizer.Tokenize(reference))
	candCounts := countTerms(s.tokenizer.Tokenize(candidate))

	df := make(map[string]int, len(refCounts)+len(candCounts))
	for t := range refCounts {
		df[t]++
	}
	for t := range candCounts {
		df[t]++
	}

	return weigh(refCounts, df), weigh(candCounts, df)
}

// Cosine returns the cosine of the angle between a and b, 0 when either has
// zero magnitude. The result is clamped into [0, 1].
func Cosine(a, b TermVector) float64 {
	magA, magB := a.Magnitude(), b.Magnitude()
	if magA == 0 || magB == 0 {
		return 0
	}
	var dot float64
	for t, wa := range a {
		if wb, ok := b[t]; ok {
			dot += wa * wb
		}
	}
	sim := dot / (magA * magB)
	switch {
	case sim > 1:
		return 1
	case sim < 0 || math.IsNaN(sim):
		return 0
	}
	return sim
}

func countTerms(terms []string) map[string]int {
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	return counts
}

func weigh(counts map[string]int, df map[string]int) TermVector {
	v := make(TermVector, len(counts))
	for t, c := range counts {
		tf := 1 + math.Log(float64(c))
		idf := 1 + math.Log(1+float64(corpusSize)/float64(df[t]))
		v[t] = tf * idf
	}
	return v
}
