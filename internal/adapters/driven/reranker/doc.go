// Package reranker holds the cross-encoder adapters.
//
// Each subpackage implements driven.Reranker:
//
//   - tei: a HuggingFace text-embeddings-inference server hosting a
//     cross-encoder such as cross-encoder/ms-marco-MiniLM-L-6-v2
//   - voyage: the Voyage AI rerank API
//
// Both return scores in input order; sorting is left to the caller.
package reranker

import (
	"errors"
	"fmt"
)

// ErrMalformedScores marks a rerank response that does not score every
// document exactly once.
var ErrMalformedScores = errors.New("malformed rerank scores")

// IndexedScore is a score for the document at Index.
type IndexedScore struct {
	Index int
	Score float64
}

// InInputOrder places scores back in document order and checks that every
// document was scored exactly once.
func InInputOrder(provider string, n int, scored []IndexedScore) ([]float64, error) {
	scores := make([]float64, n)
	seen := make([]bool, n)
	for _, s := range scored {
		if s.Index < 0 || s.Index >= n {
			return nil, fmt.Errorf("%w: %s: score index %d out of range", ErrMalformedScores, provider, s.Index)
		}
		if seen[s.Index] {
			return nil, fmt.Errorf("%w: %s: duplicate score for document %d", ErrMalformedScores, provider, s.Index)
		}
		seen[s.Index] = true
		scores[s.Index] = s.Score
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: %s: no score for document %d", ErrMalformedScores, provider, i)
		}
	}
	return scores, nil
}
