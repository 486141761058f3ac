package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"HotspotLite/internal/classify"
	"HotspotLite/internal/config"
	"HotspotLite/internal/domain"
	"HotspotLite/internal/httpapi"
	"HotspotLite/internal/infrastructure/llm"
	"HotspotLite/internal/infrastructure/metrics"
	"HotspotLite/internal/infrastructure/ml"
	"HotspotLite/internal/infrastructure/parser"
	"HotspotLite/internal/infrastructure/scheduler"
	"HotspotLite/internal/infrastructure/storage"
	"HotspotLite/internal/logging"
	"HotspotLite/internal/ports"
	"HotspotLite/internal/scanner"
	"HotspotLite/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	store     *storage.SQLRepository
	registry  *prometheus.Registry
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	api       *httpapi.Server
}

// New opens the store, runs migrations and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	db, err := storage.Open(ctx, dialect, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	store := storage.NewSQLRepository(db, dialect)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipeline()
	if err := pipelineMetrics.Register(registry); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpClient := &http.Client{Timeout: 20 * time.Second}
	scanners := scanner.NewRegistry()
	scanners.Register(parser.NewTopHubScanner(httpClient))
	scanners.Register(parser.NewHTMLListScanner(httpClient))
	scanners.Register(parser.NewRSSScanner(httpClient))
	source := parser.NewStrategySource(scanners, cfg.Sources, cfg.Pipeline.FetchConcurrency, baseLogger.With("component", "source"))

	table := classify.DefaultTable
	fallback := newFallback(cfg.Fallback, table, baseLogger.With("component", "fallback"))
	baseLogger.Info("fallback classifier", "provider", cfg.Fallback.ResolvedProvider())

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:           source,
		Articles:         store,
		Events:           store,
		Rules:            classify.NewRules(table),
		Fallback:         fallback,
		FallbackTimeout:  cfg.Pipeline.FallbackTimeout,
		Metrics:          pipelineMetrics,
		Logger:           baseLogger.With("component", "pipeline"),
		ClusterLimit:     cfg.Pipeline.ClusterLimit,
		ClusterThreshold: cfg.Pipeline.ClusterThreshold,
	})

	sched := usecase.NewScheduler(
		scheduler.NewTickerScheduler(cfg.Scheduler.Interval, cfg.Scheduler.StartsImmediately()),
		pipeline,
		usecase.NewStatusBoard(),
		baseLogger.With("component", "scheduler"),
	)

	api := httpapi.NewServer(httpapi.Deps{
		Store:    store,
		Runner:   sched,
		Status:   sched.Board(),
		Gatherer: registry,
		Logger:   baseLogger.With("component", "httpapi"),
	}, httpapi.Options{Host: cfg.Server.Host, Port: cfg.Server.Port})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		store:     store,
		registry:  registry,
		pipeline:  pipeline,
		scheduler: sched,
		api:       api,
	}, nil
}

func newFallback(cfg config.FallbackConfig, table classify.Table, logger *slog.Logger) ports.FallbackClassifier {
	switch cfg.ResolvedProvider() {
	case config.ProviderChat:
		return llm.NewChatClassifier(cfg.Chat, table, logger)
	case config.ProviderInference:
		return ml.NewClient(cfg.Inference, table, logger)
	default:
		return nil
	}
}

// Serve starts the scheduler and the read API and blocks until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}()

	return a.api.Start(ctx)
}

// RunOnce performs a single fetch, upsert, score and cluster pass.
func (a *Application) RunOnce(ctx context.Context) (usecase.RunResult, error) {
	return a.scheduler.Trigger(ctx)
}

// Ingest processes a batch loaded from outside the configured sources.
func (a *Application) Ingest(ctx context.Context, batch domain.Batch) (usecase.RunResult, error) {
	return a.scheduler.Ingest(ctx, batch)
}

// Recluster rebuilds events from the stored articles.
func (a *Application) Recluster(ctx context.Context) (int, error) {
	return a.scheduler.Recluster(ctx)
}

// Store exposes the read side for callers that print results.
func (a *Application) Store() ports.ReadRepository {
	return a.store
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
