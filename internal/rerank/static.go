package rerank

import (
	"context"
	"fmt"
	"sync"
)

// StaticReranker returns fixed scores per candidate text. Unknown texts score Default.
// Setting Err makes Score fail.
type StaticReranker struct {
	Scores  map[string]float64
	Default float64
	Err     error

	mu    sync.Mutex
	calls [][]string
}

// NewStaticReranker returns a reranker that scores text with scores[text].
func NewStaticReranker(scores map[string]float64) *StaticReranker {
	return &StaticReranker{Scores: scores}
}

func (r *StaticReranker) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string(nil), candidates...))
	r.mu.Unlock()
	if r.Err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReranker, r.Err)
	}
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		s, ok := r.Scores[c]
		if !ok {
			s = r.Default
		}
		out[i] = s
	}
	return out, nil
}

// Calls returns the candidate lists seen so far.
func (r *StaticReranker) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func (r *StaticReranker) Name() string { return "static" }

func (r *StaticReranker) Close() error { return nil }
