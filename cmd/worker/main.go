package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/cottonlog/internal/bootstrap"
	"github.com/kirillkom/cottonlog/internal/config"
	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/core/ports"
	"github.com/kirillkom/cottonlog/internal/core/usecase"
	"github.com/kirillkom/cottonlog/internal/observability/logging"
	"github.com/kirillkom/cottonlog/internal/observability/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("worker", "info").Error("config_error", "error", err)
		os.Exit(1)
	}
	// The worker only makes sense with the event bus.
	cfg.EventsEnabled = true
	logger := logging.Install(logging.NewJSONLogger("worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	var ledger ports.CompletionLedger
	if app.Ledger != nil {
		ledger = app.Ledger
	}
	projector := usecase.NewProjectionUseCase(
		app.Store,
		ledger,
		app.Exporter,
		app.Exports,
		workerMetrics.Projection("worker"),
		logger,
	)

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "ledger", ledger != nil, "export_path", cfg.ExportPath)
	err = app.Events.SubscribeBaleCompleted(ctx, func(handlerCtx context.Context, event domain.BaleCompletedEvent) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, time.Minute)
		defer cancel()
		return projector.Handle(processCtx, event)
	})
	if err != nil {
		logger.Error("worker_subscribe_error", "error", err)
		os.Exit(1)
	}
}
