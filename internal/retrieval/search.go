package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/internal/vector"
	"github.com/Skynet843/IntentSearch/pkg/utils"
)

// candidate is one ANN hit resolved to its product.
type candidate struct {
	id         string
	text       string
	hasText    bool
	similarity float64
	rerank     *float64
}

// Search returns product ids ranked for q. An empty index yields an empty response.
// When reranking is requested and fails, the response keeps embedding order and sets
// RerankFallback. q is not modified; defaults are applied to a copy.
func (e *Engine) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if q == nil {
		return nil, fmt.Errorf("%w: nil query", ErrInvalidInput)
	}
	query := *q
	q = &query
	if err := q.Validate(e.config.DefaultTopK, e.config.MaxTopK, e.config.RerankByDefault()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if e.corrupted.Load() {
		return nil, ErrCorrupted
	}

	resp := models.NewSearchResponse(q.Query)
	if e.Size() == 0 {
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	queryVec, err := e.queryEmb.Embed(ctx, q.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	cands, err := e.retrieve(ctx, queryVec, q.TopK)
	if err != nil {
		return nil, err
	}

	if q.RerankEnabled() && e.reranker != nil && len(cands) > 0 {
		reordered, err := e.rerank(ctx, q.Query, cands)
		if err != nil {
			resp.RerankFallback = true
			e.logger.Warn("rerank failed; using embedding order",
				zap.String("reranker", e.reranker.Name()),
				zap.Int("candidates", len(cands)),
				zap.Error(err),
			)
		} else {
			cands = reordered
			resp.Reranked = true
		}
	}

	for i, c := range cands {
		resp.IDs = append(resp.IDs, c.id)
		if !q.WithScores {
			continue
		}
		score := c.similarity
		if c.rerank != nil {
			score = *c.rerank
		}
		resp.Results = append(resp.Results, &models.SearchResult{
			ID:          c.id,
			Rank:        i + 1,
			Score:       score,
			Similarity:  c.similarity,
			RerankScore: c.rerank,
		})
	}
	resp.Total = len(resp.IDs)
	resp.QueryTime = time.Since(start).Milliseconds()

	e.logger.Debug("search",
		zap.String("query", utils.Truncate(q.Query, 200)),
		zap.Int("top_k", q.TopK),
		zap.Int("results", resp.Total),
		zap.Bool("reranked", resp.Reranked),
		zap.Int64("ms", resp.QueryTime),
	)
	return resp, nil
}

// retrieve runs the ANN search and resolves slots under the shared state lock.
func (e *Engine) retrieve(ctx context.Context, queryVec []float32, k int) ([]candidate, error) {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	hits, err := e.index.Search(ctx, queryVec, k)
	if errors.Is(err, vector.ErrEmptyIndex) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	cands := make([]candidate, 0, len(hits))
	for _, h := range hits {
		id, err := e.ids.Resolve(h.Slot)
		if err != nil {
			return nil, fmt.Errorf("resolve slot: %w", err)
		}
		text, ok := e.texts.Get(id)
		cands = append(cands, candidate{id: id, text: text, hasText: ok, similarity: h.Score})
	}
	return cands, nil
}

// rerank scores the candidates that have text and orders them by score, keeping ANN order
// among equal scores. Candidates without text follow in ANN order.
func (e *Engine) rerank(ctx context.Context, query string, cands []candidate) ([]candidate, error) {
	var scored, unscored []candidate
	for _, c := range cands {
		if c.hasText {
			scored = append(scored, c)
		} else {
			unscored = append(unscored, c)
		}
	}
	if len(scored) == 0 {
		return cands, nil
	}

	texts := make([]string, len(scored))
	for i, c := range scored {
		texts[i] = c.text
	}
	scores, err := e.reranker.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(scored) {
		return nil, fmt.Errorf("reranker returned %d scores for %d candidates", len(scores), len(scored))
	}
	for i := range scored {
		s := scores[i]
		if math.IsNaN(s) {
			s = math.Inf(-1)
		}
		scored[i].rerank = &s
	}
	sort.SliceStable(scored, func(i, j int) bool { return *scored[i].rerank > *scored[j].rerank })
	return append(scored, unscored...), nil
}
