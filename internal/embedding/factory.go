package embedding

import (
	"fmt"

	"github.com/Skynet843/IntentSearch/internal/config"
)

// Provider names accepted by New.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// New builds the embedder described by cfg with the shared dimension dims.
// When cfg.CacheSize is positive the embedder is wrapped in a CachedEmbedder.
func New(cfg config.EmbedderConfig, dims int) (Embedder, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive, got %d", ErrEmbedding, dims)
	}
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderONNX, "":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.TokenizerPath, dims, cfg.MaxTokens)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedderFromEnv(cfg.APIKeyEnv, cfg.BaseURL, cfg.Model, dims)
	case ProviderMock:
		e = NewMockEmbedder(dims)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", ErrEmbedding, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return e, nil
}
