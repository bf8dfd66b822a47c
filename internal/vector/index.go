// Package vector provides the slot-addressed vector index used for dense retrieval.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	// Seen at startup it indicates a configuration bug between the embedders and the index.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrEmptyIndex is returned by Search when the index holds no vectors. Callers treat it
	// as "no results".
	ErrEmptyIndex = errors.New("vector index is empty")
)

// VectorIndex stores unit-normalized vectors in insertion order. Slot i is the i-th vector
// ever added (after any truncation); callers correlate slots with their own identifier map.
type VectorIndex interface {
	// Add appends vectors in order. Either every vector is stored or none is.
	Add(ctx context.Context, vectors [][]float32) error
	// Search returns up to k hits by inner product, highest first. Equal scores are ordered
	// by slot, earliest first.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)
	// Truncate drops every slot >= n. Used to roll back a failed append.
	Truncate(n int) error
	// Vectors returns a read-only view of the stored vectors in slot order.
	Vectors() [][]float32
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Hit is a single nearest-neighbor result.
type Hit struct {
	Slot  int
	Score float64 // inner product; cosine similarity in [-1, 1] for unit vectors
}
