package models

import (
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	off := false
	tests := []struct {
		name       string
		query      *SearchQuery
		wantErr    bool
		wantTopK   int
		wantRerank bool
	}{
		{"empty query", &SearchQuery{Query: ""}, true, 0, false},
		{"blank query", &SearchQuery{Query: "   "}, true, 0, false},
		{"sets default top_k", &SearchQuery{Query: "yoga mat"}, false, 20, true},
		{"keeps top_k", &SearchQuery{Query: "x", TopK: 5}, false, 5, true},
		{"caps top_k", &SearchQuery{Query: "x", TopK: 500}, false, 100, true},
		{"explicit rerank off", &SearchQuery{Query: "x", Rerank: &off}, false, 20, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate(20, 100, true)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.query.TopK != tt.wantTopK {
				t.Errorf("TopK = %d, want %d", tt.query.TopK, tt.wantTopK)
			}
			if tt.query.RerankEnabled() != tt.wantRerank {
				t.Errorf("RerankEnabled() = %v, want %v", tt.query.RerankEnabled(), tt.wantRerank)
			}
		})
	}
}

func TestNewSearchResponse(t *testing.T) {
	resp := NewSearchResponse("q")
	if resp.IDs == nil {
		t.Error("IDs should be non-nil so it encodes as []")
	}
	if resp.Query != "q" {
		t.Errorf("Query = %q", resp.Query)
	}
}
