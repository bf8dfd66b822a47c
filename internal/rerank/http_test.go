package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPReranker_Score(t *testing.T) {
	var got httpRerankRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/rerank" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// sorted by score like the real service
		_ = json.NewEncoder(w).Encode([]httpRerankResult{
			{Index: 2, Score: 0.9},
			{Index: 0, Score: 0.5},
			{Index: 1, Score: 0.1},
		})
	}))
	defer srv.Close()

	r, err := NewHTTPReranker(srv.URL+"/", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	scores, err := r.Score(context.Background(), "shoes", []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0.5, 0.1, 0.9}
	for i := range want {
		if scores[i] != want[i] {
			t.Errorf("scores[%d]=%f, want %f", i, scores[i], want[i])
		}
	}
	if got.Query != "shoes" || len(got.Texts) != 3 {
		t.Errorf("request: %+v", got)
	}
}

func TestHTTPReranker_errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
		{"missing scores", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([]httpRerankResult{{Index: 0, Score: 1}})
		}},
		{"duplicate index", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode([]httpRerankResult{{Index: 0, Score: 1}, {Index: 0, Score: 2}})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			r, err := NewHTTPReranker(srv.URL, time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := r.Score(context.Background(), "q", []string{"a", "b"}); !errors.Is(err, ErrReranker) {
				t.Errorf("expected ErrReranker, got %v", err)
			}
		})
	}
}

func TestNewHTTPReranker_requiresURL(t *testing.T) {
	if _, err := NewHTTPReranker("", 0); !errors.Is(err, ErrReranker) {
		t.Errorf("expected ErrReranker, got %v", err)
	}
}
