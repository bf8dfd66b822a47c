// Package rerank scores (query, product text) pairs with a cross-encoder or a stand-in for one.
package rerank

import (
	"context"
	"errors"
)

// ErrReranker is returned (wrapped) when a reranker cannot score candidates.
var ErrReranker = errors.New("reranker failed")

// Reranker returns one relevance score per candidate, in candidate order; higher is more relevant.
// Scores are only comparable within one call.
type Reranker interface {
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
	Name() string
	Close() error
}
