// Package embedding turns product and query text into unit-length dense vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbedding is returned (wrapped) when a model or service fails to produce embeddings.
var ErrEmbedding = errors.New("embedding failed")

// Embedder produces vector embeddings for text.
// Returned vectors are L2-normalized and have Dimensions() elements.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

var errEmptyBatch = errors.New("empty batch")

// embedEach is the EmbedBatch implementation for backends that run one text at a time.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, errEmptyBatch)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = emb
	}
	return out, nil
}
