package models

import (
	"fmt"
	"strings"
)

// SearchQuery is a retrieval request.
type SearchQuery struct {
	Query      string `json:"query"`
	TopK       int    `json:"top_k,omitempty"`
	WithScores bool   `json:"with_scores,omitempty"`
	// Rerank overrides the configured default when set.
	Rerank *bool `json:"rerank,omitempty"`
}

// Validate rejects blank queries and fills in TopK and Rerank from the given defaults.
// TopK is capped at maxTopK when maxTopK is positive.
func (q *SearchQuery) Validate(defaultTopK, maxTopK int, rerankDefault bool) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.TopK <= 0 {
		q.TopK = defaultTopK
	}
	if maxTopK > 0 && q.TopK > maxTopK {
		q.TopK = maxTopK
	}
	if q.Rerank == nil {
		r := rerankDefault
		q.Rerank = &r
	}
	return nil
}

// RerankEnabled reports whether the cross-encoder stage should run.
func (q *SearchQuery) RerankEnabled() bool {
	return q.Rerank != nil && *q.Rerank
}
