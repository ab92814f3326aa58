package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lifely/lifely/internal/config"
	"github.com/lifely/lifely/internal/database"
	"github.com/lifely/lifely/internal/enrichment"
	"github.com/lifely/lifely/internal/inference"
	"github.com/lifely/lifely/internal/logging"
	"github.com/lifely/lifely/internal/metrics"
	"github.com/lifely/lifely/internal/server"
)

// app holds the process-wide dependencies shared by subcommands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Collector
	db      *database.DB
	store   enrichment.Store
	calls   *inference.Logger
	server  *server.Server
}

// newApp loads configuration and opens the cache store. The metrics listener
// is only started when withServer is set and an address is configured.
func newApp(ctx context.Context, withServer bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: collector}

	if cfg.Cache.Driver == "memory" {
		a.store = database.NewMemoryStore()
	} else {
		dbCfg := database.DefaultConfig()
		dbCfg.Driver = cfg.Cache.Driver
		dbCfg.DSN = cfg.Cache.DSN

		logger.Info("connecting to cache database", "driver", dbCfg.Driver)
		db, err := database.Connect(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.db = db
		a.store = database.NewCacheStore(db)
		a.calls = inference.NewLogger(database.NewInferenceLogRepository(db), logger)
	}

	if withServer && cfg.Metrics.Addr != "" {
		var health server.HealthFunc
		if a.db != nil {
			health = func(ctx context.Context) error { return database.HealthCheck(ctx, a.db) }
		}
		a.server = server.New(cfg.Metrics.Addr, logger, collector, health)
		go func() {
			if err := a.server.Start(); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	return a, nil
}

// cache loads the enrichment cache from the configured store.
func (a *app) cache(ctx context.Context) (*enrichment.Cache, error) {
	cache := enrichment.NewCache(a.store, a.logger, a.metrics)
	if err := cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("load enrichment cache: %w", err)
	}
	return cache, nil
}

// generator returns the inference client, or nil when no API key is set.
func (a *app) generator() (enrichment.Generator, error) {
	ic := a.cfg.Inference
	if !ic.Enabled() {
		return nil, nil
	}

	clock := inference.SystemClock{}
	throttle, err := inference.NewThrottle(ic.RequestsPerWindow, ic.Window, clock)
	if err != nil {
		return nil, err
	}

	retry := inference.DefaultRetryPolicy()
	retry.MaxRetries = ic.MaxRetries
	if ic.InitialBackoff > 0 {
		retry.InitialBackoff = ic.InitialBackoff
	}

	opts := inference.Options{
		Models:             ic.Models,
		Throttle:           throttle,
		Retry:              retry,
		Timeout:            ic.Timeout,
		MaxOutputTokens:    ic.MaxOutputTokens,
		OutputTokenCeiling: ic.OutputTokenCeil,
		ReasoningEffort:    ic.ReasoningEffort,
		Verbosity:          ic.Verbosity,
		Clock:              clock,
		Metrics:            a.metrics,
		Logger:             a.logger,
	}
	if a.calls != nil {
		opts.CallLog = a.calls
	}

	client, err := inference.NewClient(inference.NewOpenAIBackend(ic.APIKey, ic.BaseURL), opts)
	if err != nil {
		return nil, fmt.Errorf("init inference client: %w", err)
	}
	return client, nil
}

// places returns the Places resolver, or nil when no Maps key is set.
func (a *app) places(ctx context.Context) (*enrichment.PlaceResolver, error) {
	if !a.cfg.Places.Enabled() {
		return nil, nil
	}
	resolver, err := enrichment.NewPlaceResolver(ctx, a.cfg.Places.APIKey, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init places resolver: %w", err)
	}
	return resolver, nil
}

func (a *app) close() {
	if a.calls != nil {
		a.calls.Flush()
	}
	if a.server != nil {
		if err := a.server.Shutdown(context.Background()); err != nil {
			a.logger.Error("shutdown error", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
}

var errNoDatabase = errors.New("call history needs a sqlite or postgres cache driver")
