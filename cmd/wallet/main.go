package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"wallet/internal/amqp"
	"wallet/internal/apiclient"
	"wallet/internal/cache"
	"wallet/internal/config"
	apphttp "wallet/internal/http"
	"wallet/internal/log"
	"wallet/internal/metrics"
	"wallet/internal/session"
	"wallet/internal/storage"
)

const (
	sessionCleanupInterval = 5 * time.Minute
	shutdownTimeout        = 30 * time.Second
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	sessions := session.NewStore(session.Config{
		Secret:   []byte(cfg.SessionSecret),
		TTL:      cfg.SessionTTL,
		MaxViews: cfg.SessionMaxViews,
		Secure:   cfg.SecureCookies,
	}, logger, session.WithGauge(m.ActiveSessions))

	cacheManager := cache.NewManager(clockwork.NewRealClock(), logger.WithComponent(log.ComponentCache).Logger)
	cacheManager.Register(sessions)
	cacheManager.StartCleanup(sessionCleanupInterval)
	defer cacheManager.Stop()

	api := apiclient.New(cfg.APIURL, cfg.APITimeout,
		apiclient.WithObserver(m),
		apiclient.WithLogger(logger))

	deps := apphttp.Deps{
		API:                api,
		Sessions:           sessions,
		Metrics:            m,
		Registry:           reg,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     trustedProxies(),
	}

	if cfg.SnapshotEnabled() {
		repo, err := storage.NewSQLiteRepository(cfg.SnapshotDBPath)
		if err != nil {
			// The dashboard works without snapshots, only the offline fallback is lost.
			logger.Warn("Snapshot store unavailable, continuing without it",
				log.FieldError, err.Error(),
				"path", cfg.SnapshotDBPath)
		} else {
			defer repo.Close()
			deps.Snapshots = repo
			logger.Info("Snapshot store ready", "path", cfg.SnapshotDBPath)
		}
	}

	var events *amqp.Client
	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		for _, q := range []string{cfg.AMQPQueue, cfg.AMQPExportQueue} {
			if err := client.DeclareQueue(q); err != nil {
				return err
			}
		}
		events = client
		deps.Publisher = client
	} else {
		logger.Info("Change events disabled - no AMQP_URL provided")
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, deps)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting wallet server",
			"port", cfg.Port,
			"api_url", cfg.APIURL,
			"snapshot", deps.Snapshots != nil,
			"events", events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if events != nil {
		g.Go(func() error {
			err := events.Consume(gctx, cfg.AMQPQueue, srv.HandleExpenseChanged)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// trustedProxies reads TRUSTED_PROXIES, a comma separated list of CIDRs
// whose forwarding headers are believed.
func trustedProxies() []string {
	raw := os.Getenv("TRUSTED_PROXIES")
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
