//go:build !cgo
// +build !cgo

package rerank

import (
	"context"
	"fmt"
)

// ONNXReranker stub type when built without CGO (see onnx.go for real implementation).
type ONNXReranker struct{}

// NewONNXReranker returns an error when built without CGO (ONNX not available).
func NewONNXReranker(_, _ string, _ int) (*ONNXReranker, error) {
	return nil, fmt.Errorf("%w: ONNX reranker requires CGO; build with CGO_ENABLED=1 and onnxruntime", ErrReranker)
}

func (r *ONNXReranker) Score(context.Context, string, []string) ([]float64, error) {
	return nil, fmt.Errorf("%w: ONNX not available", ErrReranker)
}

func (r *ONNXReranker) Name() string { return "onnx" }

func (r *ONNXReranker) Close() error { return nil }
