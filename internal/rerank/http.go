package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPReranker calls a text-embeddings-inference style /rerank endpoint.
type HTTPReranker struct {
	url    string
	client *http.Client
}

type httpRerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type httpRerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewHTTPReranker returns a reranker that posts to baseURL + "/rerank".
func NewHTTPReranker(baseURL string, timeout time.Duration) (*HTTPReranker, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: rerank url is required", ErrReranker)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPReranker{
		url:    strings.TrimRight(baseURL, "/") + "/rerank",
		client: &http.Client{Timeout: timeout},
	}, nil
}

// Score sends all candidates in one request and maps the returned scores back by index.
func (r *HTTPReranker) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(httpRerankRequest{Query: query, Texts: candidates, RawScores: true})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %w", ErrReranker, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrReranker, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrReranker, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrReranker, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: service returned status %d: %s", ErrReranker, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var results []httpRerankResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrReranker, err)
	}
	if len(results) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d scores for %d candidates", ErrReranker, len(results), len(candidates))
	}
	scores := make([]float64, len(candidates))
	seen := make([]bool, len(candidates))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) || seen[res.Index] {
			return nil, fmt.Errorf("%w: bad result index %d", ErrReranker, res.Index)
		}
		seen[res.Index] = true
		scores[res.Index] = res.Score
	}
	return scores, nil
}

func (r *HTTPReranker) Name() string { return "http" }

func (r *HTTPReranker) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
