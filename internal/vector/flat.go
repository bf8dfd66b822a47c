package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// FlatIndex is an exact inner-product index: every search scans all stored vectors.
// For the catalogue sizes this engine targets the scan is cheap and results are exact,
// so ordering is fully deterministic.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dimensions: dimensions,
		vectors:    make([][]float32, 0),
	}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Add validates every vector before storing any of them, then appends copies in order.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(vec), f.dimensions)
		}
	}
	copies := make([][]float32, len(vectors))
	for i, vec := range vectors {
		c := make([]float32, f.dimensions)
		copy(c, vec)
		copies[i] = c
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, copies...)
	return nil
}

// Search returns the top-k slots by inner product (assumes normalized vectors = cosine similarity).
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.vectors) == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, nil
	}
	hits := make([]Hit, len(f.vectors))
	for slot, vec := range f.vectors {
		hits[slot] = Hit{Slot: slot, Score: Dot(query, vec)}
	}
	// Stable over slot order: ties keep the earliest-added vector first.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k:k], nil
}

// Truncate drops every slot >= n. The retained slots are copied into a fresh slice so that
// views returned earlier by Vectors never observe later appends.
func (f *FlatIndex) Truncate(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n > len(f.vectors) {
		return fmt.Errorf("truncate to %d: index holds %d vectors", n, len(f.vectors))
	}
	kept := make([][]float32, n)
	copy(kept, f.vectors[:n])
	f.vectors = kept
	return nil
}

// Vectors returns the stored vectors in slot order. The slice and its elements must not be modified.
func (f *FlatIndex) Vectors() [][]float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vectors[:len(f.vectors):len(f.vectors)]
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}

// Dot returns the inner product of a and b, accumulated in float64. Lengths must match.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
