package models

// SearchResult is a single ranked hit. Score is the rerank score when the response was
// reranked and the candidate had text to score, otherwise the embedding similarity.
type SearchResult struct {
	ID          string   `json:"id"`
	Rank        int      `json:"rank"`
	Score       float64  `json:"score"`
	Similarity  float64  `json:"similarity"`
	RerankScore *float64 `json:"rerank_score,omitempty"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	// IDs holds product identifiers in final rank order. Never nil.
	IDs []string `json:"ids"`
	// Results is populated only when the query asked for scores.
	Results []*SearchResult `json:"results,omitempty"`
	Total   int             `json:"total"`
	// Reranked is true when the cross-encoder ordering was applied.
	Reranked bool `json:"reranked"`
	// RerankFallback is true when reranking was requested but the reranker failed,
	// so the results are in embedding-similarity order.
	RerankFallback bool   `json:"rerank_fallback,omitempty"`
	QueryTime      int64  `json:"query_time_ms"`
	Query          string `json:"query"`
}

// NewSearchResponse returns an empty response for query.
func NewSearchResponse(query string) *SearchResponse {
	return &SearchResponse{IDs: make([]string, 0), Query: query}
}
