package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Skynet843/IntentSearch/internal/models"
	"github.com/Skynet843/IntentSearch/pkg/utils"
)

// Appender is the part of the engine the importer writes to.
type Appender interface {
	Append(ctx context.Context, products []models.Product) (*models.AppendResult, error)
	Contains(id string) bool
}

// Stats summarizes one import.
type Stats struct {
	Read     int
	Appended int
	Skipped  int
	Batches  int
}

// Importer splits product lists into append batches.
type Importer struct {
	target       Appender
	batchSize    int
	skipExisting bool
	logger       *zap.Logger
	onBatch      func(appended int)
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets a logger for per-batch output.
func WithLogger(l *zap.Logger) ImporterOption {
	return func(im *Importer) { im.logger = utils.LoggerOrNop(l) }
}

// WithSkipExisting drops products whose id is already indexed (or repeated in the input)
// instead of letting the engine reject the batch.
func WithSkipExisting(skip bool) ImporterOption {
	return func(im *Importer) { im.skipExisting = skip }
}

// WithProgress calls fn after each committed batch with the number of products it added.
func WithProgress(fn func(appended int)) ImporterOption {
	return func(im *Importer) { im.onBatch = fn }
}

// NewImporter returns an importer writing to target in batches of batchSize (256 if <= 0).
func NewImporter(target Appender, batchSize int, opts ...ImporterOption) *Importer {
	if batchSize <= 0 {
		batchSize = 256
	}
	im := &Importer{target: target, batchSize: batchSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile loads path and imports its products.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	products, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	stats, err := im.Import(ctx, products)
	if err != nil {
		return stats, fmt.Errorf("import %s: %w", path, err)
	}
	im.logger.Info("file imported",
		zap.String("path", path),
		zap.Int("read", stats.Read),
		zap.Int("appended", stats.Appended),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// Import appends products batch by batch. It stops at the first failed batch; earlier
// batches stay committed and are counted in the returned stats.
func (im *Importer) Import(ctx context.Context, products []models.Product) (*Stats, error) {
	stats := &Stats{Read: len(products)}
	if im.skipExisting {
		products = im.dropKnown(products, stats)
	}
	for start := 0; start < len(products); start += im.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(start+im.batchSize, len(products))
		res, err := im.target.Append(ctx, products[start:end])
		if err != nil {
			return stats, fmt.Errorf("batch %d: %w", stats.Batches+1, err)
		}
		stats.Batches++
		stats.Appended += res.Appended
		im.logger.Debug("batch imported",
			zap.String("batch_id", res.BatchID),
			zap.Int("appended", res.Appended),
			zap.Int("total", res.Total),
		)
		if im.onBatch != nil {
			im.onBatch(res.Appended)
		}
	}
	return stats, nil
}

func (im *Importer) dropKnown(products []models.Product, stats *Stats) []models.Product {
	seen := make(map[string]struct{}, len(products))
	kept := make([]models.Product, 0, len(products))
	for _, p := range products {
		if _, dup := seen[p.ID]; dup || im.target.Contains(p.ID) {
			stats.Skipped++
			continue
		}
		seen[p.ID] = struct{}{}
		kept = append(kept, p)
	}
	return kept
}
