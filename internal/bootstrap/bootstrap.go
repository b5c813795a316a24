package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/cottonlog/internal/config"
	"github.com/kirillkom/cottonlog/internal/core/ports"
	"github.com/kirillkom/cottonlog/internal/core/usecase"
	"github.com/kirillkom/cottonlog/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/cottonlog/internal/infrastructure/matching/fuzzy"
	"github.com/kirillkom/cottonlog/internal/infrastructure/queue/nats"
	"github.com/kirillkom/cottonlog/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/cottonlog/internal/infrastructure/repository/redis"
	"github.com/kirillkom/cottonlog/internal/infrastructure/resilience"
	"github.com/kirillkom/cottonlog/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/cottonlog/internal/infrastructure/tabular/xlsx"
	"github.com/kirillkom/cottonlog/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Registry        *prometheus.Registry
	WorkflowMetrics *metrics.WorkflowMetrics

	Store    ports.SessionStore
	Events   *nats.EventBus
	Ledger   *postgres.CompletionRepository
	Exports  *localfs.Storage
	Importer ports.TableImporter
	Exporter ports.TableExporter

	Workflow ports.SessionWorkflow
	Reports  ports.SessionReporter

	closeFn []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Importer: xlsx.NewImporter(),
		Exporter: xlsx.NewExporter(),
	}
	app.WorkflowMetrics = metrics.NewWorkflowMetrics(app.Registry)

	store, err := app.openStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	exports, err := localfs.New(cfg.ExportPath)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init export storage: %w", err)
	}
	app.Exports = exports

	var publisher ports.EventPublisher
	if cfg.EventsEnabled {
		executor := resilience.NewExecutorWithObserver(resilience.PublishConfig(), logger, app.WorkflowMetrics)
		bus, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init event bus: %w", err)
		}
		app.Events = bus
		app.closeFn = append(app.closeFn, bus.Close)
		publisher = bus
	}

	var assessor ports.QualityAssessor
	if cfg.AssessmentEnabled {
		executor := resilience.NewExecutorWithObserver(resilience.AssessmentConfig(), logger, app.WorkflowMetrics)
		assessor = ollama.NewAssessor(ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor))
	}

	app.Workflow = usecase.NewWorkflowUseCase(
		store,
		fuzzy.New(cfg.MatchThreshold),
		assessor,
		publisher,
		usecase.WorkflowOptions{
			RecompletePolicy: usecase.RecompletePolicy(cfg.RecompletePolicy),
			ManualDuplicates: usecase.DuplicatePolicy(cfg.ManualDuplicatePolicy),
			Logger:           logger,
			Metrics:          app.WorkflowMetrics,
		},
	)
	app.Reports = usecase.NewReportUseCase(store)
	return app, nil
}

func (a *App) openStore(ctx context.Context) (ports.SessionStore, error) {
	switch a.Config.StoreBackend {
	case "postgres":
		db, err := postgres.OpenDB(a.Config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFn = append(a.closeFn, func() { _ = db.Close() })
		repo := postgres.NewSessionRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.Ledger = postgres.NewCompletionRepository(db)
		return repo, nil
	case "redis":
		redisCfg := redis.DefaultConfig(a.Config.RedisAddr)
		redisCfg.Password = a.Config.RedisPassword
		redisCfg.DB = a.Config.RedisDB
		redisCfg.Prefix = a.Config.RedisPrefix
		store, err := redis.NewSessionStore(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		a.closeFn = append(a.closeFn, func() { _ = store.Close() })
		return store, nil
	default:
		store, err := localfs.NewSessionStore(a.Config.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init session storage: %w", err)
		}
		return store, nil
	}
}

func (a *App) Close() {
	for i := len(a.closeFn) - 1; i >= 0; i-- {
		a.closeFn[i]()
	}
	a.closeFn = nil
}
