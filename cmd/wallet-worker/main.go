package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"wallet/internal/amqp"
	"wallet/internal/backend"
	"wallet/internal/config"
	"wallet/internal/log"
	"wallet/internal/metrics"
	"wallet/internal/storage"
	"wallet/internal/worker"
)

const (
	reconcileTimeout = 2 * time.Minute
	shutdownTimeout  = 30 * time.Second
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentWorker,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	logger.Info("Starting wallet-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is required for the export worker")
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	repo, err := storage.NewSQLiteRepository(cfg.LedgerDBPath)
	if err != nil {
		return fmt.Errorf("open ledger store %s: %w", cfg.LedgerDBPath, err)
	}
	defer repo.Close()

	ledgerCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	sink, err := backend.NewFactory(logger).CreateSink(ctx, ledgerCfg)
	if err != nil {
		return err
	}
	defer sink.Cleanup()

	events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		return err
	}
	defer events.Close()

	exporter := worker.NewExportWorker(repo.Ledger(), sink.Sink, logger, worker.WithObserver(m))

	// Catch up on whatever the sink missed while the worker was down.
	if err := exporter.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", log.FieldError, err.Error())
	}

	scheduler := worker.NewScheduler(logger)
	if err := scheduler.Add(ctx, cfg.ReconcileSchedule, log.OpReconcile, reconcileTimeout, exporter.Reconcile); err != nil {
		return err
	}
	scheduler.Start()

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler(reg))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := repo.Ping(r.Context()); err != nil {
			http.Error(w, "ledger store: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Consuming export queue",
			log.FieldQueue, cfg.AMQPExportQueue,
			"ledger", cfg.LedgerBackend)
		err := events.Consume(gctx, cfg.AMQPExportQueue, exporter.HandleMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down worker...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		scheduler.Stop(shutdownCtx)
		return metricsSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
