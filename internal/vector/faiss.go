//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

// FAISSIndex keeps vectors in a FAISS IndexFlatIP (inner product, equivalent to cosine
// similarity for normalized vectors). FAISS labels are assigned sequentially, so a label
// is the slot. A Go-side copy of the vectors backs Vectors and Truncate.
type FAISSIndex struct {
	index      *C.FaissIndexFlatIP
	dimensions int
	vectors    [][]float32
	mu         sync.RWMutex
}

// IsFAISSAvailable reports whether the binary was built with FAISS support.
func IsFAISSAvailable() bool { return true }

// NewFAISSIndex creates a FAISS index with the given dimension using inner product.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	var index *C.FaissIndexFlatIP
	if ret := C.faiss_IndexFlatIP_new_with(&index, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	return &FAISSIndex{index: index, dimensions: dimensions}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add validates every vector, then appends them to FAISS in one call.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	flat := make([]float32, len(vectors)*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("%w: vector %d has %d, expected %d", ErrDimensionMismatch, i, len(vec), f.dimensions)
		}
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.addLocked(flat, len(vectors)); err != nil {
		return err
	}
	for i := range vectors {
		f.vectors = append(f.vectors, flat[i*f.dimensions:(i+1)*f.dimensions:(i+1)*f.dimensions])
	}
	return nil
}

func (f *FAISSIndex) addLocked(flat []float32, n int) error {
	if n == 0 {
		return nil
	}
	ret := C.faiss_Index_add(f.index, C.idx_t(n), (*C.float)(unsafe.Pointer(&flat[0])))
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns the top-k slots by inner product. Equal scores are ordered by slot, including
// ties at the k-th score: FAISS may cut such a tie arbitrarily, so the search is widened until the
// last fetched score falls below the k-th before the result is cut to k.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, ErrEmptyIndex
	}
	if k <= 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}
	fetch := min(k+1, ntotal)
	for {
		hits, err := f.searchLocked(query, fetch)
		if err != nil {
			return nil, err
		}
		if len(hits) <= k {
			return hits, nil
		}
		if fetch >= ntotal || hits[len(hits)-1].Score < hits[k-1].Score {
			return hits[:k], nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fetch = min(fetch*2, ntotal)
	}
}

// searchLocked asks FAISS for n hits and orders them by score, then slot.
func (f *FAISSIndex) searchLocked(query []float32, n int) ([]Hit, error) {
	distances := make([]float32, n)
	labels := make([]int64, n)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	hits := make([]Hit, 0, n)
	for i, label := range labels {
		if label < 0 {
			continue
		}
		hits = append(hits, Hit{Slot: int(label), Score: float64(distances[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Slot < hits[j].Slot
	})
	return hits, nil
}

// Truncate drops every slot >= n by resetting the FAISS index and re-adding the kept prefix.
func (f *FAISSIndex) Truncate(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < 0 || n > len(f.vectors) {
		return fmt.Errorf("truncate to %d: index holds %d vectors", n, len(f.vectors))
	}
	if n == len(f.vectors) {
		return nil
	}
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("failed to reset FAISS index: %s", faissLastError())
	}
	kept := make([][]float32, n)
	copy(kept, f.vectors[:n])
	flat := make([]float32, 0, n*f.dimensions)
	for _, vec := range kept {
		flat = append(flat, vec...)
	}
	if err := f.addLocked(flat, n); err != nil {
		f.vectors = nil
		return err
	}
	f.vectors = kept
	return nil
}

// Vectors returns the stored vectors in slot order. The slice and its elements must not be modified.
func (f *FAISSIndex) Vectors() [][]float32 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.vectors[:len(f.vectors):len(f.vectors)]
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
