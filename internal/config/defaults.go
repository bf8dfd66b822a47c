package config

import "strings"

const dataRoot = "/usr/local/var/intentsearch/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "file"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = defaultStoragePath(cfg.Storage.Backend)
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	applyEmbedderDefaults(&cfg.Embedding.Document, "all-MiniLM-L6-v2")
	applyEmbedderDefaults(&cfg.Embedding.Query, "multi-qa-MiniLM-L6-cos-v1")
	if cfg.Rerank.Provider == "" {
		cfg.Rerank.Provider = "onnx"
	}
	if cfg.Rerank.Provider == "onnx" && cfg.Rerank.ModelPath == "" {
		cfg.Rerank.ModelPath = dataRoot + "/models/ms-marco-MiniLM-L-6-v2.onnx"
	}
	if cfg.Rerank.Provider == "onnx" && cfg.Rerank.TokenizerPath == "" {
		cfg.Rerank.TokenizerPath = tokenizerPathFor(cfg.Rerank.ModelPath)
	}
	if cfg.Rerank.MaxTokens == 0 {
		cfg.Rerank.MaxTokens = 512
	}
	if cfg.Rerank.TimeoutSecs == 0 {
		cfg.Rerank.TimeoutSecs = 30
	}
	if cfg.Search.IndexType == "" {
		cfg.Search.IndexType = "flat"
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 20
	}
	if cfg.Search.MaxTopK == 0 {
		cfg.Search.MaxTopK = 100
	}
	if cfg.Search.TimeoutSecs == 0 {
		cfg.Search.TimeoutSecs = 30
	}
	if cfg.Ingest.Patterns == nil {
		cfg.Ingest.Patterns = []string{"**/*.jsonl", "**/*.csv", "**/*.xlsx"}
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 256
	}
	if cfg.Ingest.TimeoutSecs == 0 {
		cfg.Ingest.TimeoutSecs = 600
	}
}

func applyEmbedderDefaults(e *EmbedderConfig, model string) {
	if e.Provider == "" {
		e.Provider = "onnx"
	}
	if e.Model == "" {
		e.Model = model
	}
	if e.Provider == "onnx" && e.ModelPath == "" {
		e.ModelPath = dataRoot + "/models/" + e.Model + ".onnx"
	}
	if e.Provider == "onnx" && e.TokenizerPath == "" {
		e.TokenizerPath = tokenizerPathFor(e.ModelPath)
	}
	if e.Provider == "openai" && e.APIKeyEnv == "" {
		e.APIKeyEnv = "OPENAI_API_KEY"
	}
	if e.MaxTokens == 0 {
		e.MaxTokens = 256
	}
	if e.CacheSize == 0 {
		e.CacheSize = 10000
	}
}

func defaultStoragePath(backend string) string {
	switch backend {
	case "bolt":
		return dataRoot + "/index/snapshot.bolt"
	case "sqlite":
		return dataRoot + "/index/snapshot.db"
	default:
		return dataRoot + "/index/snapshot.isnp"
	}
}

// tokenizerPathFor places the tokenizer next to the model: models/x.onnx -> models/x.tokenizer.json.
func tokenizerPathFor(modelPath string) string {
	return strings.TrimSuffix(modelPath, ".onnx") + ".tokenizer.json"
}
