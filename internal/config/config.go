// Package config provides configuration loading and structs for the IntentSearch server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Rerank    RerankConfig    `yaml:"rerank"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// StorageConfig selects where the index snapshot is persisted.
// Backend is one of "file", "bolt" or "sqlite".
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// EmbeddingConfig holds the document and query embedders. Both must produce vectors of
// Dimensions length in the same space.
type EmbeddingConfig struct {
	Dimensions int            `yaml:"dimensions"`
	Document   EmbedderConfig `yaml:"document"`
	Query      EmbedderConfig `yaml:"query"`
}

// EmbedderConfig configures one embedding backend.
// Provider is one of "onnx", "openai" or "mock".
type EmbedderConfig struct {
	Provider      string `yaml:"provider"`
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	CacheSize     int    `yaml:"cache_size"`
	BaseURL       string `yaml:"base_url"`
	APIKeyEnv     string `yaml:"api_key_env"`
}

// RerankConfig configures the cross-encoder stage.
// Provider is one of "onnx", "http", "lexical" or "none".
type RerankConfig struct {
	Provider      string `yaml:"provider"`
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	URL           string `yaml:"url"`
	MaxTokens     int    `yaml:"max_tokens"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// SearchConfig holds retrieval settings.
type SearchConfig struct {
	IndexType     string `yaml:"index_type"`
	DefaultTopK   int    `yaml:"default_top_k"`
	MaxTopK       int    `yaml:"max_top_k"`
	RerankDefault *bool  `yaml:"rerank_default"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// RerankByDefault returns whether queries rerank when they do not say; defaults to true when unset.
func (s *SearchConfig) RerankByDefault() bool {
	if s.RerankDefault != nil {
		return *s.RerankDefault
	}
	return true
}

// IngestConfig holds the inbox watcher and bulk import settings.
type IngestConfig struct {
	Directories  []string `yaml:"directories"`
	Patterns     []string `yaml:"patterns"`
	BatchSize    int      `yaml:"batch_size"`
	TimeoutSecs  int      `yaml:"timeout_secs"`
	SkipExisting *bool    `yaml:"skip_existing"`
}

// SkipExistingOrDefault returns whether imports drop already-indexed products; defaults to true.
func (i *IngestConfig) SkipExistingOrDefault() bool {
	if i.SkipExisting != nil {
		return *i.SkipExisting
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// A .env file next to the config is loaded into the environment first so api_key_env
// references resolve. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadEnvFile(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)

	cfg.Storage.Path = expandPath(cfg.Storage.Path, configDir)
	cfg.Embedding.Document.ModelPath = expandPath(cfg.Embedding.Document.ModelPath, configDir)
	cfg.Embedding.Query.ModelPath = expandPath(cfg.Embedding.Query.ModelPath, configDir)
	cfg.Embedding.Document.TokenizerPath = expandPath(cfg.Embedding.Document.TokenizerPath, configDir)
	cfg.Embedding.Query.TokenizerPath = expandPath(cfg.Embedding.Query.TokenizerPath, configDir)
	cfg.Rerank.ModelPath = expandPath(cfg.Rerank.ModelPath, configDir)
	cfg.Rerank.TokenizerPath = expandPath(cfg.Rerank.TokenizerPath, configDir)
	for i := range cfg.Ingest.Directories {
		cfg.Ingest.Directories[i] = expandPath(cfg.Ingest.Directories[i], configDir)
	}

	return &cfg, nil
}

// loadEnvFile loads KEY=VALUE pairs from path without overriding variables already set.
// A missing file is not an error.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
