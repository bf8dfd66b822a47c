// Package retrieval runs the two-stage product search: dense retrieval over the vector index,
// then optional cross-encoder reranking. It owns the index, identifier map and text cache and
// keeps them consistent with the persisted snapshot.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Skynet843/IntentSearch/internal/config"
	"github.com/Skynet843/IntentSearch/internal/embedding"
	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/internal/rerank"
	"github.com/Skynet843/IntentSearch/internal/store"
	"github.com/Skynet843/IntentSearch/internal/textcache"
	"github.com/Skynet843/IntentSearch/internal/vector"
)

// IdentifierMap maps index slots to product ids. *idmap.Map implements it.
type IdentifierMap interface {
	Append(base int, ids []string) error
	Resolve(slot int) (string, error)
	Len() int
	Truncate(n int) error
	IDs() []string
}

// Engine coordinates appends and searches.
//
// writeMu serializes appends and reloads end to end. stateMu guards the (index, ids, texts)
// triple: writers hold it exclusively from index add through commit or rollback, searches
// hold it shared while they read the index and resolve slots. Embedding and reranking run
// outside stateMu.
type Engine struct {
	index     vector.VectorIndex
	ids       IdentifierMap
	texts     *textcache.Cache
	store     store.Store
	docEmb    embedding.Embedder
	queryEmb  embedding.Embedder
	reranker  rerank.Reranker
	config    *config.SearchConfig
	logger    *zap.Logger
	writeMu   sync.Mutex
	stateMu   sync.RWMutex
	persisted int
	lastBatch string
	corrupted atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger for batch, fallback and rollback messages.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithReranker enables the second stage. Without it searches return embedding order.
func WithReranker(r rerank.Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// NewEngine wires an engine from its parts. The index, map and cache are expected to be empty;
// call Open to load the persisted snapshot. Both embedders must produce vectors of the
// index dimension.
func NewEngine(
	index vector.VectorIndex,
	ids IdentifierMap,
	texts *textcache.Cache,
	st store.Store,
	docEmb embedding.Embedder,
	queryEmb embedding.Embedder,
	cfg *config.SearchConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if index == nil || ids == nil || texts == nil || st == nil || docEmb == nil || queryEmb == nil || cfg == nil {
		return nil, fmt.Errorf("%w: engine dependencies must not be nil", ErrInvalidInput)
	}
	dims := index.Dimensions()
	if docEmb.Dimensions() != dims {
		return nil, fmt.Errorf("%w: document embedder has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, docEmb.Dimensions(), dims)
	}
	if queryEmb.Dimensions() != dims {
		return nil, fmt.Errorf("%w: query embedder has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, queryEmb.Dimensions(), dims)
	}
	e := &Engine{
		index:    index,
		ids:      ids,
		texts:    texts,
		store:    st,
		docEmb:   docEmb,
		queryEmb: queryEmb,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Open loads the persisted snapshot into the index, map and cache.
func (e *Engine) Open(ctx context.Context) error {
	return e.Reload(ctx)
}

// Reload replaces the in-memory state with the persisted snapshot and clears the corrupted flag.
// A snapshot of a different dimension is rejected with vector.ErrDimensionMismatch and the
// current state is kept.
func (e *Engine) Reload(ctx context.Context) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	snap, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	dims := e.index.Dimensions()
	if len(snap.Entries) > 0 && snap.Dimensions != dims {
		return fmt.Errorf("%w: snapshot has %d dimensions, index has %d",
			vector.ErrDimensionMismatch, snap.Dimensions, dims)
	}
	vecs := make([][]float32, len(snap.Entries))
	slotIDs := make([]string, len(snap.Entries))
	for i, entry := range snap.Entries {
		vecs[i] = entry.Vector
		slotIDs[i] = entry.ID
	}

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	if err := e.resetLocked(ctx, vecs, slotIDs, snap.Entries); err != nil {
		e.corrupted.Store(true)
		e.logger.Error("reload failed; index state corrupted", zap.Error(err))
		return errors.Join(ErrCorrupted, err)
	}
	e.persisted = len(snap.Entries)
	e.lastBatch = snap.BatchID
	e.corrupted.Store(false)
	e.logger.Info("snapshot loaded",
		zap.String("store", e.store.Type()),
		zap.Int("products", len(snap.Entries)),
		zap.String("batch_id", snap.BatchID),
	)
	return nil
}

func (e *Engine) resetLocked(ctx context.Context, vecs [][]float32, slotIDs []string, entries []store.Entry) error {
	if err := e.index.Truncate(0); err != nil {
		return err
	}
	if err := e.ids.Truncate(0); err != nil {
		return err
	}
	e.texts.Reset()
	if len(vecs) == 0 {
		return nil
	}
	if err := e.index.Add(context.WithoutCancel(ctx), vecs); err != nil {
		return err
	}
	if err := e.ids.Append(0, slotIDs); err != nil {
		_ = e.index.Truncate(0)
		return err
	}
	for _, entry := range entries {
		e.texts.Put(entry.ID, entry.Text)
	}
	return nil
}

// Append embeds and indexes products as one batch and persists the result.
// The whole batch is rejected if any id is empty, repeated, or already indexed.
// On any failure after the index add the batch is rolled back.
func (e *Engine) Append(ctx context.Context, products []models.Product) (*models.AppendResult, error) {
	if len(products) == 0 {
		return &models.AppendResult{Appended: 0, Total: e.Size()}, nil
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if e.corrupted.Load() {
		return nil, ErrCorrupted
	}
	if err := e.validateBatch(products); err != nil {
		return nil, err
	}

	texts := make([]string, len(products))
	slotIDs := make([]string, len(products))
	for i, p := range products {
		texts[i] = p.Text
		slotIDs[i] = p.ID
	}
	vecs, err := e.docEmb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(products) {
		return nil, fmt.Errorf("%w: got %d vectors for %d products", embedding.ErrEmbedding, len(vecs), len(products))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Past this point the batch is applied or rolled back even if the caller goes away.
	applyCtx := context.WithoutCancel(ctx)
	batchID := uuid.NewString()

	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	base := e.index.Size()
	if err := e.index.Add(applyCtx, vecs); err != nil {
		return nil, fmt.Errorf("add vectors: %w", err)
	}
	if err := e.ids.Append(base, slotIDs); err != nil {
		return nil, e.rollbackLocked(base, nil, fmt.Errorf("append identifiers: %w", err))
	}
	for _, p := range products {
		e.texts.Put(p.ID, p.Text)
	}

	if err := e.store.Commit(applyCtx, e.snapshotLocked(batchID), e.persisted); err != nil {
		if !errors.Is(err, store.ErrPersistence) {
			err = fmt.Errorf("%w: %w", store.ErrPersistence, err)
		}
		return nil, e.rollbackLocked(base, slotIDs, err)
	}
	e.persisted = e.index.Size()
	e.lastBatch = batchID

	e.logger.Info("batch appended",
		zap.String("batch_id", batchID),
		zap.Int("appended", len(products)),
		zap.Int("total", e.persisted),
	)
	return &models.AppendResult{Appended: len(products), Total: e.persisted, BatchID: batchID}, nil
}

func (e *Engine) validateBatch(products []models.Product) error {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		if p.ID == "" {
			return fmt.Errorf("%w: product %d has an empty id", ErrInvalidInput, i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: %q appears more than once in the batch", ErrDuplicateID, p.ID)
		}
		seen[p.ID] = struct{}{}
		if e.texts.Has(p.ID) {
			return fmt.Errorf("%w: %q is already indexed", ErrDuplicateID, p.ID)
		}
	}
	return nil
}

// rollbackLocked restores the index, map and cache to base slots and returns cause.
// If the rollback itself fails the engine is marked corrupted.
func (e *Engine) rollbackLocked(base int, added []string, cause error) error {
	var errs []error
	if err := e.index.Truncate(base); err != nil {
		errs = append(errs, fmt.Errorf("truncate index: %w", err))
	}
	if e.ids.Len() > base {
		if err := e.ids.Truncate(base); err != nil {
			errs = append(errs, fmt.Errorf("truncate identifiers: %w", err))
		}
	}
	for _, id := range added {
		e.texts.Delete(id)
	}
	if e.index.Size() != e.ids.Len() {
		errs = append(errs, fmt.Errorf("index holds %d vectors, map holds %d ids", e.index.Size(), e.ids.Len()))
	}
	if len(errs) > 0 {
		e.corrupted.Store(true)
		rbErr := errors.Join(errs...)
		e.logger.Error("rollback failed; index state corrupted",
			zap.NamedError("cause", cause),
			zap.Error(rbErr),
		)
		return errors.Join(cause, ErrCorrupted, rbErr)
	}
	e.logger.Warn("batch rolled back", zap.Int("slots", base), zap.Error(cause))
	return cause
}

// snapshotLocked builds the persisted view of the current state. Vectors are shared with the index.
func (e *Engine) snapshotLocked(batchID string) *store.Snapshot {
	vecs := e.index.Vectors()
	slotIDs := e.ids.IDs()
	snap := &store.Snapshot{
		Dimensions: e.index.Dimensions(),
		BatchID:    batchID,
		Entries:    make([]store.Entry, len(slotIDs)),
	}
	for i, id := range slotIDs {
		text, _ := e.texts.Get(id)
		snap.Entries[i] = store.Entry{ID: id, Text: text, Vector: vecs[i]}
	}
	return snap
}

// Contains reports whether a product id is indexed.
func (e *Engine) Contains(id string) bool {
	return e.texts.Has(id)
}

// Size returns the number of indexed products.
func (e *Engine) Size() int {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.index.Size()
}

// Stats describes the engine for status endpoints.
type Stats struct {
	Products    int    `json:"products"`
	Dimensions  int    `json:"dimensions"`
	IndexType   string `json:"index_type"`
	StoreType   string `json:"store_type"`
	StorePath   string `json:"store_path"`
	StoreBytes  int64  `json:"store_bytes"`
	Reranker    string `json:"reranker"`
	LastBatchID string `json:"last_batch_id,omitempty"`
	Corrupted   bool   `json:"corrupted"`
}

// Stats returns the current index and store figures.
func (e *Engine) Stats() Stats {
	e.stateMu.RLock()
	s := Stats{
		Products:    e.index.Size(),
		Dimensions:  e.index.Dimensions(),
		IndexType:   e.index.Type(),
		StoreType:   e.store.Type(),
		StorePath:   e.store.Path(),
		Reranker:    "none",
		LastBatchID: e.lastBatch,
		Corrupted:   e.corrupted.Load(),
	}
	e.stateMu.RUnlock()
	if e.reranker != nil {
		s.Reranker = e.reranker.Name()
	}
	if n, err := store.StoreDiskUsage(e.store); err == nil {
		s.StoreBytes = n
	}
	return s
}

// Close releases the store, embedders and reranker.
func (e *Engine) Close() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	var errs []error
	if err := e.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if err := e.docEmb.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close document embedder: %w", err))
	}
	if e.queryEmb != e.docEmb {
		if err := e.queryEmb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close query embedder: %w", err))
		}
	}
	if e.reranker != nil {
		if err := e.reranker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reranker: %w", err))
		}
	}
	if err := e.index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close index: %w", err))
	}
	return errors.Join(errs...)
}
