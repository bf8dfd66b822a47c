package rerank

import (
	"context"
	"math"

	"github.com/Skynet843/IntentSearch/internal/embedding"
)

// LexicalReranker scores candidates by query term overlap. It needs no model and is used
// when no cross-encoder is deployed.
type LexicalReranker struct{}

// NewLexicalReranker returns a term-overlap reranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Score returns, per candidate, the fraction of query terms it contains, with a small
// log-scaled bonus for repeated matches.
func (r *LexicalReranker) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTerms := termSet(query)
	scores := make([]float64, len(candidates))
	if len(queryTerms) == 0 {
		return scores, nil
	}
	for i, doc := range candidates {
		scores[i] = termOverlap(queryTerms, doc)
	}
	return scores, nil
}

func termSet(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, w := range embedding.SplitWords(text) {
		terms[w] = struct{}{}
	}
	return terms
}

func termOverlap(queryTerms map[string]struct{}, doc string) float64 {
	counts := make(map[string]int)
	for _, w := range embedding.SplitWords(doc) {
		if _, ok := queryTerms[w]; ok {
			counts[w]++
		}
	}
	var score float64
	for _, n := range counts {
		score += 1 + 0.1*math.Log(float64(n))
	}
	return score / float64(len(queryTerms))
}

func (r *LexicalReranker) Name() string { return "lexical" }

func (r *LexicalReranker) Close() error { return nil }
