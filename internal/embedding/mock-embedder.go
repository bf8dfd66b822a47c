package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/Skynet843/IntentSearch/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. It returns a fixed-dimension
// vector derived from the text hash so that the same text always gets the same embedding.
// Vectors registered with SetVector take precedence over the hash embedding.
type MockEmbedder struct {
	dimensions int

	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions, vectors: make(map[string][]float32)}
}

// SetVector makes text embed to v (normalized, not validated against Dimensions).
func (e *MockEmbedder) SetVector(text string, v []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := cloneVector(v)
	utils.NormalizeL2(c)
	e.vectors[text] = c
}

// SetError makes every following call fail with err wrapped in ErrEmbedding. Nil clears it.
func (e *MockEmbedder) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Calls returns how many Embed and EmbedBatch calls were made.
func (e *MockEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Embed returns the registered vector for text, or a deterministic embedding based on the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.embed(text)
}

func (e *MockEmbedder) embed(text string) ([]float32, error) {
	e.mu.Lock()
	err := e.err
	fixed, ok := e.vectors[text]
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if ok {
		return cloneVector(fixed), nil
	}

	h := HashString(text)
	emb := make([]float32, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = float32(math.Sin(float64(h*(i+1)))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch embeds each text in order.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, errEmptyBatch)
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.embed(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
