package rerank

import (
	"fmt"
	"time"

	"github.com/Skynet843/IntentSearch/internal/config"
)

// Provider names accepted by New.
const (
	ProviderONNX    = "onnx"
	ProviderHTTP    = "http"
	ProviderLexical = "lexical"
	ProviderNone    = "none"
)

// New builds the reranker described by cfg. Provider "none" returns a nil Reranker and no error.
func New(cfg config.RerankConfig) (Reranker, error) {
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil
	case ProviderONNX, "":
		r, err := NewONNXReranker(cfg.ModelPath, cfg.TokenizerPath, cfg.MaxTokens)
		if err != nil {
			return nil, err
		}
		return r, nil
	case ProviderHTTP:
		r, err := NewHTTPReranker(cfg.URL, time.Duration(cfg.TimeoutSecs)*time.Second)
		if err != nil {
			return nil, err
		}
		return r, nil
	case ProviderLexical:
		return NewLexicalReranker(), nil
	default:
		return nil, fmt.Errorf("%w: unknown rerank provider %q", ErrReranker, cfg.Provider)
	}
}
