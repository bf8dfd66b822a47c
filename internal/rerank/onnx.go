//go:build cgo
// +build cgo

package rerank

import (
	"context"
	"fmt"
	"sync"

	"github.com/Skynet843/IntentSearch/internal/embedding"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXReranker runs a cross-encoder export (input_ids, attention_mask, token_type_ids -> logits)
// over each (query, candidate) pair encoded with the model's tokenizer.json. The raw logit is
// the score.
type ONNXReranker struct {
	session   *ort.AdvancedSession
	maxTokens int
	tokenizer *embedding.WordPieceTokenizer

	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	logitsTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

var ortInit struct {
	once sync.Once
	err  error
}

func initONNXRuntime() error {
	ortInit.once.Do(func() {
		if ort.IsInitialized() {
			return
		}
		ortInit.err = ort.InitializeEnvironment()
	})
	return ortInit.err
}

// NewONNXReranker loads the cross-encoder at modelPath and its tokenizer at tokenizerPath.
func NewONNXReranker(modelPath, tokenizerPath string, maxTokens int) (*ONNXReranker, error) {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	tokenizer, err := embedding.LoadTokenizer(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReranker, err)
	}
	if err := initONNXRuntime(); err != nil {
		return nil, fmt.Errorf("%w: initialize ONNX runtime: %w", ErrReranker, err)
	}

	shape := ort.NewShape(1, int64(maxTokens))
	var created []interface{ Destroy() error }
	cleanup := func() {
		for _, t := range created {
			_ = t.Destroy()
		}
	}

	inputIDs, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		return nil, fmt.Errorf("%w: create input_ids tensor: %w", ErrReranker, err)
	}
	created = append(created, inputIDs)
	mask, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: create attention_mask tensor: %w", ErrReranker, err)
	}
	created = append(created, mask)
	types, err := ort.NewEmptyTensor[int64](shape)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: create token_type_ids tensor: %w", ErrReranker, err)
	}
	created = append(created, types)
	logits, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: create logits tensor: %w", ErrReranker, err)
	}
	created = append(created, logits)

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{inputIDs, mask, types},
		[]ort.ArbitraryTensor{logits},
		nil,
	)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("%w: create ONNX session for %s: %w", ErrReranker, modelPath, err)
	}

	return &ONNXReranker{
		session:             session,
		maxTokens:           maxTokens,
		tokenizer:           tokenizer,
		inputIDsTensor:      inputIDs,
		attentionMaskTensor: mask,
		tokenTypeIDsTensor:  types,
		logitsTensor:        logits,
	}, nil
}

// Score runs one inference per candidate.
func (r *ONNXReranker) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil, fmt.Errorf("%w: reranker closed", ErrReranker)
	}
	scores := make([]float64, len(candidates))
	for i, text := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReranker, err)
		}
		ids, mask, types, err := r.tokenizer.TokenizePair(query, text, r.maxTokens)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrReranker, err)
		}
		copy(r.inputIDsTensor.GetData(), ids)
		copy(r.attentionMaskTensor.GetData(), mask)
		copy(r.tokenTypeIDsTensor.GetData(), types)
		if err := r.session.Run(); err != nil {
			return nil, fmt.Errorf("%w: inference failed: %w", ErrReranker, err)
		}
		scores[i] = float64(r.logitsTensor.GetData()[0])
	}
	return scores, nil
}

func (r *ONNXReranker) Name() string { return "onnx" }

// Close destroys the session and tensors.
func (r *ONNXReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}
	for _, t := range []interface{ Destroy() error }{
		r.inputIDsTensor, r.attentionMaskTensor, r.tokenTypeIDsTensor, r.logitsTensor,
	} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	r.inputIDsTensor, r.attentionMaskTensor, r.tokenTypeIDsTensor, r.logitsTensor = nil, nil, nil, nil
	return err
}
