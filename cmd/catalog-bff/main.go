// cmd/catalog-bff/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"catalog-bff/internal/aggregator"
	"catalog-bff/internal/api"
	"catalog-bff/internal/catalogdb"
	"catalog-bff/internal/common/camunda"
	"catalog-bff/internal/common/config"
	"catalog-bff/internal/common/database"
	"catalog-bff/internal/common/logger"
	"catalog-bff/internal/common/observability"
	"catalog-bff/internal/session"
	"catalog-bff/internal/upstream"

	rcv "catalog-bff/internal/workers/catalog/resolve-catalog-view"
)

func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	var outputs []string
	if cfg.Logging.Output != "" {
		outputs = append(outputs, cfg.Logging.Output)
	}
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, outputs...)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting catalog-bff...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("source", cfg.Upstream.Source),
	)

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx := context.Background()
	var checks []api.ReadinessCheck

	httpSource := upstream.NewClient(cfg.Upstream, log)
	sources := aggregator.Sources{
		Collections: httpSource,
		Plans:       httpSource,
		Session:     httpSource,
	}

	if cfg.Upstream.Source == config.SourcePostgres {
		var pg *database.PostgresClient
		err = retryWithBackoff(func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()
		zapLog.Info("PostgreSQL connected successfully")

		repo := catalogdb.NewRepository(pg.DB, log)
		sources.Collections = repo
		sources.Plans = repo
		checks = append(checks, api.ReadinessCheck{Name: "postgres", Check: pg.Ping})
	}

	var store session.Store = session.NewMemoryStore()
	if cfg.NeedsRedis() {
		redis := database.NewRedis(cfg.Database.Redis)
		err = retryWithBackoff(func() error {
			return redis.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer redis.Close()
		zapLog.Info("Redis connected successfully")
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: redis.Ping})

		if cfg.Session.Store == config.SessionStoreRedis {
			store = session.NewRedisStore(redis.Client, cfg.Session.KeyPrefix)
		}
		if cfg.Cache.PlansEnabled {
			sources.Plans = upstream.NewCachedPlans(
				sources.Plans,
				redis.Client,
				cfg.Cache.PlansKey,
				config.GetDuration(cfg.Cache.PlansTTL),
				log,
			)
		}
	}

	agg := aggregator.New(sources, log,
		aggregator.WithTracer(obs.Tracer()),
		aggregator.WithRecorder(obs),
	)
	sessions := session.NewManager(store, config.GetDuration(cfg.Session.TTL), log)

	var jobWorker *camunda.CamundaWorker
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClient(cfg.Camunda)
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		zapLog.Info("Zeebe client connected successfully")
		checks = append(checks, api.ReadinessCheck{Name: "zeebe", Check: zeebe.HealthCheck})

		wcfg := rcv.FromCamunda(cfg.Camunda)
		if err := wcfg.Validate(); err != nil {
			zapLog.Fatal("invalid worker configuration", zap.Error(err))
		}
		handler := rcv.NewHandler(wcfg, agg, sessions, log)
		jobWorker = camunda.NewWorker(zeebe.GetClient(), rcv.TaskType, wcfg.MaxJobsActive, wcfg.Timeout, handler, log)
	}

	srv := api.NewServer(agg, sessions, cfg.Session, log, checks...).HTTPServer(cfg.Server)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}
	if jobWorker != nil {
		jobWorker.Stop()
	}
	if zeebe != nil {
		if err := zeebe.Close(); err != nil {
			zapLog.Error("Error closing Zeebe client", zap.Error(err))
		}
	}

	zapLog.Info("catalog-bff stopped gracefully")
}
