// Package app assembles the scraper service from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	gpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/casaplaza/listing-scraper/internal/archive/gcs"
	"github.com/casaplaza/listing-scraper/internal/archive/local"
	archivemem "github.com/casaplaza/listing-scraper/internal/archive/memory"
	"github.com/casaplaza/listing-scraper/internal/clock/system"
	"github.com/casaplaza/listing-scraper/internal/config"
	collyfetcher "github.com/casaplaza/listing-scraper/internal/fetcher/colly"
	"github.com/casaplaza/listing-scraper/internal/fetcher/headless"
	"github.com/casaplaza/listing-scraper/internal/logging"
	publishermem "github.com/casaplaza/listing-scraper/internal/publisher/memory"
	pubsubpub "github.com/casaplaza/listing-scraper/internal/publisher/pubsub"
	"github.com/casaplaza/listing-scraper/internal/scraper"
	"github.com/casaplaza/listing-scraper/internal/sources"
	"github.com/casaplaza/listing-scraper/internal/storage/memory"
	"github.com/casaplaza/listing-scraper/internal/storage/postgres"
)

// memoryDSN selects the in-memory stores, for local runs without Postgres.
const memoryDSN = "memory"

// App owns the assembled service and its resources.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Orchestrator *scraper.Orchestrator

	closers []func()
}

// New builds the full service graph from configuration. Missing
// credentials and unknown settings fail here, never silently default.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}
	clk := system.New()

	statusStore, storeFactory, err := a.buildStores(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	blobStore, err := a.buildArchive(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	events, topic, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	pageFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: cfg.Scraper.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	headlessFetcher, err := a.buildHeadless(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	engineCfg := scraper.EngineConfig{
		Retry: scraper.RetryOptions{
			MaxRetries:        cfg.HTTP.MaxRetries,
			InitialDelay:      time.Duration(cfg.HTTP.BackoffInitialMs) * time.Millisecond,
			MaxDelay:          time.Duration(cfg.HTTP.BackoffMaxMs) * time.Millisecond,
			BackoffMultiplier: cfg.HTTP.BackoffMultiplier,
		},
		BreakerThreshold: cfg.Breaker.Threshold,
		BreakerCooldown:  cfg.BreakerCooldown(),
	}

	srcOpts := make(map[string]sources.Options)
	for _, name := range sources.Names() {
		srcCfg, ok := cfg.Sources[name]
		if !ok || !srcCfg.Enabled {
			continue
		}
		srcOpts[name] = sources.Options{
			BaseURL:           srcCfg.BaseURL,
			APIKey:            srcCfg.APIKey,
			RequestsPerMinute: srcCfg.RequestsPerMinute,
			MaxPagesPerTarget: srcCfg.MaxPagesPerTarget,
		}
	}
	registry, err := sources.BuildRegistry(srcOpts)
	if err != nil {
		a.Close()
		return nil, err
	}

	var engines []*scraper.Engine
	for _, name := range registry.Names() {
		src, _ := registry.Get(name)
		fetcher := scraper.Fetcher(pageFetcher)
		if src.Headless {
			fetcher = headlessFetcher
		}
		engines = append(engines, scraper.NewEngine(src, fetcher, storeFactory, blobStore, clk, engineCfg, logger))
	}
	if len(engines) == 0 {
		a.Close()
		return nil, fmt.Errorf("no sources enabled")
	}

	a.Orchestrator = scraper.NewOrchestrator(engines, statusStore, events, topic, clk, logger)
	return a, nil
}

// Close releases all owned resources in reverse acquisition order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
}

func (a *App) buildStores(
	ctx context.Context,
	cfg config.Config,
	logger *zap.Logger,
) (scraper.StatusStore, scraper.PropertyStoreFactory, error) {
	if cfg.DB.DSN == "" {
		return nil, nil, fmt.Errorf("db.dsn is required (use %q for in-memory stores)", memoryDSN)
	}
	if cfg.DB.DSN == memoryDSN {
		props := memory.NewPropertyStore()
		statuses := memory.NewStatusStore()
		factory := func(context.Context) (scraper.PropertyStore, error) { return props, nil }
		return statuses, factory, nil
	}

	poolCfg := postgres.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetime) * time.Second,
	}
	statuses, err := postgres.NewStatusStore(ctx, poolCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect status store: %w", err)
	}
	a.closers = append(a.closers, statuses.Close)

	// Each engine run opens its own pool so concurrent sources never share
	// a connection.
	factory := func(ctx context.Context) (scraper.PropertyStore, error) {
		return postgres.NewPropertyStore(ctx, poolCfg, logger)
	}
	return statuses, factory, nil
}

func (a *App) buildArchive(ctx context.Context, cfg config.Config) (scraper.BlobStore, error) {
	switch cfg.Archive.Backend {
	case "memory":
		return archivemem.NewBlobStore(), nil
	case "local":
		store, err := local.New(cfg.Archive.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("open local archive: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return gcs.New(client, cfg.Archive.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (scraper.Publisher, string, error) {
	if cfg.PubSub.ProjectID == "" || cfg.PubSub.TopicName == "" {
		return publishermem.New(), "runs", nil
	}
	client, err := gpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, "", fmt.Errorf("create pubsub client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return pubsubpub.New(client), cfg.PubSub.TopicName, nil
}

func (a *App) buildHeadless(cfg config.Config) (scraper.Fetcher, error) {
	if !cfg.Headless.Enabled {
		return headless.NewNoop(), nil
	}
	fetcher, err := headless.NewChromedp(headless.Config{
		MaxParallel:       cfg.Headless.MaxParallel,
		UserAgent:         cfg.Scraper.UserAgent,
		NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("build headless fetcher: %w", err)
	}
	a.closers = append(a.closers, fetcher.Close)
	return fetcher, nil
}
