package pipeline

import (
	"context"
	"fmt"

	"github.com/ppiankov/grievance/internal/cache"
	"github.com/ppiankov/grievance/internal/catalog"
	"github.com/ppiankov/grievance/internal/model"
	"github.com/ppiankov/grievance/internal/similarity"
	"github.com/ppiankov/grievance/internal/slotfill"
	"github.com/ppiankov/grievance/internal/store"
	"github.com/ppiankov/grievance/internal/validate"
	"github.com/ppiankov/grievance/internal/worker"
	"go.uber.org/zap"
)

// Build wires a pipeline from configuration: the case store, category
// catalog, embedding cache, similarity provider and optional slot filler.
// The caller owns the returned pipeline and must Close it.
func Build(ctx context.Context, cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	categories, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	limiter := worker.NewLimiter(cfg.Similarity.RequestsPerSecond, cfg.Similarity.Burst)

	semantic, err := similarity.NewProvider(cfg.Similarity, cfg.Proxy, cache.New(cfg.Cache), limiter)
	if err != nil {
		return nil, fmt.Errorf("similarity provider: %w", err)
	}

	filler, err := slotfill.NewFiller(cfg.SlotFill, cfg.Proxy, limiter)
	if err != nil {
		return nil, fmt.Errorf("slot filler: %w", err)
	}

	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open case store: %w", err)
	}

	p, err := New(cfg, Deps{
		Store:    s,
		Semantic: semantic,
		Filler:   filler,
		Catalog:  categories,
		History:  validate.NewCacheHistory(cfg.Filter.HistoryTTL, cfg.Filter.HistoryMaxEntries),
		Logger:   logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	logger.Debug("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("similarity", cfg.Similarity.Provider),
		zap.Strings("categories", catalog.Names(categories)),
		zap.Bool("slotfill", filler != nil),
	)
	return p, nil
}
