package cli

import (
	"context"
	"fmt"
	"time"

	"cfocopilot/internal/backend"
	"cfocopilot/internal/cache"
	"cfocopilot/internal/config"
	"cfocopilot/internal/copilot"
	"cfocopilot/internal/intent"
	"cfocopilot/internal/ledger"
	"cfocopilot/internal/log"
	"cfocopilot/internal/metrics"
	"cfocopilot/internal/worker"
)

// cacheJanitorInterval is how often expired answers are swept.
const cacheJanitorInterval = time.Minute

// Copilot is the assembled question-answering stack.
type Copilot struct {
	Config  *config.Config
	Service *copilot.Service
	Backend *backend.Result
	Worker  *worker.ReloadWorker
	Store   *ledger.Store

	caches *cache.Manager
}

// Options tweak NewCopilot. The zero value loads the first snapshot and
// starts the cache janitor.
type Options struct {
	// SkipInitialLoad leaves the store empty; the caller reloads later.
	SkipInitialLoad bool
	// NoJanitor skips the cache cleanup goroutine, for one-shot commands.
	NoJanitor bool
	Factory   backend.Factory
}

// NewCopilot wires classifier, engine, cache, store and the configured
// backend, then loads the first snapshot. A workbook that fails validation
// aborts start-up.
func NewCopilot(ctx context.Context, cfg *config.Config, logger *log.Logger, opts Options) (*Copilot, error) {
	classifier, err := intent.NewFromFile(cfg.ClassifierRulesFile)
	if err != nil {
		return nil, fmt.Errorf("load classifier rules: %w", err)
	}
	engine := metrics.NewEngine(metrics.Options{
		RunwayWindow: cfg.RunwayWindowMonths,
		TrendWindow:  cfg.TrendWindowMonths,
	})

	var answers cache.Cache[copilot.Response]
	caches := cache.NewManager(logger)
	if cfg.ResultCacheSize > 0 {
		lru := cache.NewLRUCache[copilot.Response](cfg.ResultCacheSize, cfg.ResultCacheTTL)
		caches.Register("answers", lru)
		answers = lru
	}

	store := ledger.NewStore()
	svc := copilot.NewService(store, classifier, engine, answers, logger)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := opts.Factory
	if factory == nil {
		factory = backend.NewFactory(logger)
	}
	res, err := factory.Create(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	c := &Copilot{
		Config:  cfg,
		Service: svc,
		Backend: res,
		Store:   store,
		Worker:  worker.NewReloadWorker(svc, res.Source, res.Type.String(), cfg.ReloadInterval, logger),
		caches:  caches,
	}

	if !opts.SkipInitialLoad {
		if _, err := c.Worker.ReloadNow(ctx); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("initial ledger load: %w", err)
		}
	}
	if !opts.NoJanitor {
		caches.Start(cacheJanitorInterval)
	}
	return c, nil
}

// Close stops the janitor and releases the backend.
func (c *Copilot) Close() error {
	c.caches.Stop()
	return c.Backend.Close()
}
