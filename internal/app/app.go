package app

import (
	"context"
	"time"

	"labelrecon/internal/cache"
	"labelrecon/internal/config"
	"labelrecon/internal/listener"
	"labelrecon/internal/logger"
	"labelrecon/internal/observability"
	"labelrecon/internal/pipeline"
	"labelrecon/internal/storage"
)

// App holds the services shared by the command line entry points.
type App struct {
	Config     config.Config
	Log        *logger.Logger
	Metrics    *observability.Metrics
	DB         *storage.DB
	Cache      *pipeline.ExtractionCache
	Reconciler *pipeline.ReconcileService
	Processor  *pipeline.ProcessingService

	pressure *cache.PressureMonitor
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	extractions := pipeline.NewExtractionCache(cfg.CacheEntries, time.Duration(cfg.CacheTTLSec)*time.Second)
	pressure := cache.NewPressureMonitor(uint64(cfg.CacheMemoryLimitMB)<<20, func(heap uint64) {
		metrics.CachePurges.Inc()
		log.Warn("extraction cache purged", "heapMB", heap>>20, "limitMB", cfg.CacheMemoryLimitMB)
	}, extractions.Documents, extractions.Catalogs)
	pressure.Start(ctx, cache.DefaultCheckInterval)

	reconciler := pipeline.NewReconcileService(cfg, log, metrics).WithCache(extractions).WithStore(db)
	return &App{
		Config:     cfg,
		Log:        log,
		Metrics:    metrics,
		DB:         db,
		Cache:      extractions,
		Reconciler: reconciler,
		Processor:  pipeline.NewProcessingService(db, reconciler, log, metrics),
		pressure:   pressure,
	}, nil
}

func (a *App) Listener() *listener.Service {
	return listener.NewService(a.DB, a.Config, a.Processor, a.Log, a.Metrics)
}

// Close stops background work, flushes metrics and closes the database.
func (a *App) Close() error {
	a.pressure.Close()
	if err := a.Metrics.WriteTextfile(a.Config.MetricsTextfile); err != nil {
		a.Log.Warn("metrics textfile not written", "error", err)
	}
	a.Log.Sync()
	return a.DB.Close()
}
