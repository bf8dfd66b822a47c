// Package integration provides end-to-end tests (requires real storage and indices).
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Skynet843/IntentSearch/internal/config"
	"github.com/Skynet843/IntentSearch/internal/embedding"
	"github.com/Skynet843/IntentSearch/internal/idmap"
	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/internal/rerank"
	"github.com/Skynet843/IntentSearch/internal/retrieval"
	"github.com/Skynet843/IntentSearch/internal/server"
	"github.com/Skynet843/IntentSearch/internal/store"
	"github.com/Skynet843/IntentSearch/internal/textcache"
	"github.com/Skynet843/IntentSearch/internal/vector"
)

// TestIntegration_RemoteReranker runs the HTTP API against an engine whose second stage is an
// external cross-encoder service.
func TestIntegration_RemoteReranker(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage:   config.StorageConfig{Backend: store.BackendSQLite, Path: filepath.Join(dir, "snap.db")},
		Embedding: config.EmbeddingConfig{Dimensions: 4},
	}
	config.ApplyDefaults(cfg)

	// Scores products by the length of their text: longest first.
	rerankSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string   `json:"query"`
			Texts []string `json:"texts"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type scored struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		}
		out := make([]scored, len(req.Texts))
		for i, text := range req.Texts {
			out[i] = scored{Index: i, Score: float64(len(text))}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	defer rerankSrv.Close()

	reranker, err := rerank.New(config.RerankConfig{Provider: rerank.ProviderHTTP, URL: rerankSrv.URL, TimeoutSecs: 5})
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.New(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := vector.NewVectorIndex(cfg.Search.IndexType, cfg.Embedding.Dimensions)
	if err != nil {
		t.Fatal(err)
	}
	doc := embedding.NewMockEmbedder(4)
	query := embedding.NewMockEmbedder(4)
	doc.SetVector("mug", []float32{1, 0, 0, 0})
	doc.SetVector("large ceramic mug", []float32{0.8, 0.6, 0, 0})
	doc.SetVector("extra large insulated travel mug", []float32{0.6, 0.8, 0, 0})
	doc.SetVector("garden hose", []float32{0, 0, 0, 1})
	query.SetVector("mug", []float32{1, 0, 0, 0})

	engine, err := retrieval.NewEngine(idx, idmap.New(), textcache.New(), st, doc, query, &cfg.Search,
		retrieval.WithReranker(reranker))
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()
	if err := engine.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	api := httptest.NewServer(server.NewServer(engine, cfg, nil).Handler())
	defer api.Close()

	body := `{"products":[{"id":"m1","text":"mug"},{"id":"m2","text":"large ceramic mug"},` +
		`{"id":"m3","text":"extra large insulated travel mug"},{"id":"h1","text":"garden hose"}]}`
	resp, err := http.Post(api.URL+"/api/v1/products", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("append status = %d", resp.StatusCode)
	}

	search := func(rerankOn bool) models.SearchResponse {
		t.Helper()
		q, _ := json.Marshal(models.SearchQuery{Query: "mug", TopK: 3, WithScores: true, Rerank: &rerankOn})
		resp, err := http.Post(api.URL+"/api/v1/search", "application/json", strings.NewReader(string(q)))
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var out models.SearchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatal(err)
		}
		return out
	}

	plain := search(false)
	if strings.Join(plain.IDs, ",") != "m1,m2,m3" {
		t.Errorf("embedding order = %v, want [m1 m2 m3]", plain.IDs)
	}
	reranked := search(true)
	if !reranked.Reranked || strings.Join(reranked.IDs, ",") != "m3,m2,m1" {
		t.Errorf("reranked order = %v (reranked=%v), want [m3 m2 m1]", reranked.IDs, reranked.Reranked)
	}
	if r := reranked.Results[0]; r.RerankScore == nil || r.Score != *r.RerankScore {
		t.Errorf("top result scores = %+v", r)
	}

	// The reranker going away degrades to embedding order.
	rerankSrv.Close()
	fallback := search(true)
	if !fallback.RerankFallback || strings.Join(fallback.IDs, ",") != "m1,m2,m3" {
		t.Errorf("fallback = %v (fallback=%v)", fallback.IDs, fallback.RerankFallback)
	}
}
