//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import (
	"context"
	"fmt"
)

var errFAISSUnavailable = fmt.Errorf("FAISS not available: build with -tags=faiss and install the FAISS C library")

// FAISSIndex is a stub that returns an error when FAISS is not available.
// Build with -tags=faiss to enable FAISS support.
type FAISSIndex struct{}

// IsFAISSAvailable reports whether the binary was built with FAISS support.
func IsFAISSAvailable() bool { return false }

// NewFAISSIndex returns an error because FAISS is not available.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32) error { return errFAISSUnavailable }

func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	return nil, errFAISSUnavailable
}

func (f *FAISSIndex) Truncate(n int) error { return errFAISSUnavailable }
func (f *FAISSIndex) Vectors() [][]float32 { return nil }
func (f *FAISSIndex) Size() int { return 0 }
func (f *FAISSIndex) Dimensions() int { return 0 }
func (f *FAISSIndex) Close() error { return nil }
func (f *FAISSIndex) Type() string { return string(IndexTypeFAISS) }
