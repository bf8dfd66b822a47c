package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/internal/retrieval"
)

func sampleResponse() *models.SearchResponse {
	rr := 2.5
	return &models.SearchResponse{
		Query:     "trail shoes",
		QueryTime: 7,
		Total:     2,
		Reranked:  true,
		IDs:       []string{"sku-9", "sku-3"},
		Results: []*models.SearchResult{
			{ID: "sku-9", Rank: 1, Score: 2.5, Similarity: 0.71, RerankScore: &rr},
			{ID: "sku-3", Rank: 2, Score: 0.8, Similarity: 0.8},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "trail shoes" || len(decoded.IDs) != 2 || decoded.IDs[0] != "sku-9" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.String(), "sku-9\nsku-3\n"; got != want {
		t.Errorf("compact output = %q, want %q", got, want)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "reranked", "sku-9", "rerank 2.5000", "sku-3"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	resp := sampleResponse()
	resp.Results = nil
	resp.Reranked = false
	resp.RerankFallback = true
	buf.Reset()
	_ = WriteSearchResults(&buf, resp, OutputText)
	if !strings.Contains(buf.String(), "reranker unavailable") || !strings.Contains(buf.String(), "  2. sku-3") {
		t.Errorf("ids-only text output:\n%s", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"compact", OutputCompact, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteStats(t *testing.T) {
	stats := retrieval.Stats{Products: 3, Dimensions: 384, IndexType: "flat", StoreType: "file",
		StorePath: "/tmp/s.isnp", StoreBytes: 2048, Reranker: "lexical", Corrupted: true}

	var buf bytes.Buffer
	if err := WriteStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Products:     3", "2.0 KiB", "lexical", "CORRUPTED"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("stats text missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	_ = WriteStats(&buf, stats, OutputCompact)
	if buf.String() != "3\n" {
		t.Errorf("compact stats = %q", buf.String())
	}

	buf.Reset()
	_ = WriteStats(&buf, stats, OutputJSON)
	var decoded retrieval.Stats
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil || decoded != stats {
		t.Errorf("json stats = %+v, %v", decoded, err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{0: "0 B", 1023: "1023 B", 1024: "1.0 KiB", 1536: "1.5 KiB", 5 << 20: "5.0 MiB"}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
