package embedding

import (
	"errors"
	"testing"

	"github.com/Skynet843/IntentSearch/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbedderConfig
		dims    int
		wantErr bool
		cached  bool
	}{
		{name: "mock", cfg: config.EmbedderConfig{Provider: "mock"}, dims: 8},
		{name: "mock cached", cfg: config.EmbedderConfig{Provider: "mock", CacheSize: 10}, dims: 8, cached: true},
		{name: "unknown", cfg: config.EmbedderConfig{Provider: "word2vec"}, dims: 8, wantErr: true},
		{name: "zero dims", cfg: config.EmbedderConfig{Provider: "mock"}, dims: 0, wantErr: true},
		{name: "onnx without tokenizer", cfg: config.EmbedderConfig{Provider: "onnx", ModelPath: "missing.onnx", TokenizerPath: "missing.tokenizer.json"}, dims: 8, wantErr: true},
		{name: "openai without key", cfg: config.EmbedderConfig{Provider: "openai", APIKeyEnv: "INTENTSEARCH_UNSET_KEY"}, dims: 8, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, tt.dims)
			if tt.wantErr {
				if !errors.Is(err, ErrEmbedding) {
					t.Fatalf("expected ErrEmbedding, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer e.Close()
			if e.Dimensions() != tt.dims {
				t.Errorf("Dimensions()=%d, want %d", e.Dimensions(), tt.dims)
			}
			if _, ok := e.(*CachedEmbedder); ok != tt.cached {
				t.Errorf("cached=%v, want %v", ok, tt.cached)
			}
		})
	}
}
