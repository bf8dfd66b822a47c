package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/internal/retrieval"
)

// apiClient talks to a running intentsearch server. It also serves as an ingest.Appender
// so bulk imports can go through the server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *apiClient) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	var resp models.SearchResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/search", q, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) Status(ctx context.Context) (*retrieval.Stats, error) {
	var stats retrieval.Stats
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *apiClient) Reload(ctx context.Context) (*retrieval.Stats, error) {
	var stats retrieval.Stats
	if err := c.do(ctx, http.MethodPost, "/api/v1/reload", nil, http.StatusOK, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *apiClient) Append(ctx context.Context, products []models.Product) (*models.AppendResult, error) {
	var res models.AppendResult
	req := models.AppendRequest{Products: products}
	if err := c.do(ctx, http.MethodPost, "/api/v1/products", req, http.StatusCreated, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Contains always reports false; the server rejects known ids itself.
func (c *apiClient) Contains(string) bool { return false }

func (c *apiClient) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
