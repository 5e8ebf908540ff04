package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stockroomhq/stockroom/internal/cachecore"
	"github.com/stockroomhq/stockroom/internal/config"
	"github.com/stockroomhq/stockroom/internal/server"
	"github.com/stockroomhq/stockroom/internal/storage"
	"github.com/stockroomhq/stockroom/internal/warmup"
	"github.com/stockroomhq/stockroom/pkg/cache"
	"github.com/stockroomhq/stockroom/pkg/db"
	"github.com/stockroomhq/stockroom/pkg/logger"
	redispkg "github.com/stockroomhq/stockroom/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cache coordination service",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(baseCtx context.Context, cfg config.Config) error {
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, db.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() { _ = db.Shutdown(pool)(context.Background()) }()

	checks := map[string]server.CheckFunc{
		"postgres": db.Healthcheck(pool),
	}

	var store cache.Cache[any]
	if cfg.RedisURL != "" {
		client, err := redispkg.Open(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		store = cache.NewRedis[any](client, nil,
			cache.WithPrefix(cfg.Cache.Prefix),
			cache.WithRedisDefaultTTL(cfg.Cache.DefaultTTL.Std()),
			cache.WithRedisLogger(log),
		)
		checks["redis"] = redispkg.Healthcheck(client)
		log.Info("cache backend: redis", slog.String("prefix", cfg.Cache.Prefix))
	} else {
		store = cache.NewMemory[any](
			cache.WithDefaultTTL(cfg.Cache.DefaultTTL.Std()),
			cache.WithCleanupInterval(cfg.Cache.CleanupInterval.Std()),
			cache.WithMaxEntries(cfg.Cache.MaxEntries),
		)
		log.Info("cache backend: memory", slog.Int("max_entries", cfg.Cache.MaxEntries))
	}
	defer func() { _ = store.Close() }()

	source := storage.NewPostgres(pool)
	registry := cachecore.NewRegistry(store)
	invalidator := cachecore.NewInvalidator(registry, log)
	defer invalidator.Close()

	orch := warmup.NewOrchestrator(store, registry, source, log,
		warmup.WithReferenceTTL(cfg.Warmup.ReferenceTTL.Std()),
		warmup.WithDashboardTTL(cfg.Warmup.DashboardTTL.Std()),
		warmup.WithPOSTTL(cfg.Warmup.POSTTL.Std()),
		warmup.WithPredictionsTTL(cfg.Warmup.PredictionsTTL.Std()),
		warmup.WithBranchLimit(cfg.Warmup.BranchLimit),
		warmup.WithTopProductsLimit(cfg.Warmup.TopProductsLimit),
		warmup.WithLowStockThreshold(cfg.Warmup.LowStockThreshold),
	)

	scheduler, err := warmup.NewScheduler(orch, log,
		warmup.WithInitialDelay(cfg.Warmup.RefreshInitialDelay.Std()),
		warmup.WithRefreshInterval(cfg.Warmup.RefreshInterval.Std()),
		warmup.WithCronSchedule(cfg.Warmup.RefreshCron),
	)
	if err != nil {
		return fmt.Errorf("build refresh scheduler: %w", err)
	}

	trigger := warmup.NewStartupTrigger(orch, log, cfg.Warmup.StartupDelay.Std())
	trigger.Kickoff(ctx)
	checks["warmup"] = trigger.ReadyCheck()

	handler := server.New(log, invalidator, orch, checks)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	g.Go(func() error {
		log.Info("server starting", slog.String("address", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", slog.Any("error", err))
		return err
	}

	log.Info("shutdown completed")
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	if cfg.Sentry.DSN != "" {
		return logger.NewWithSentry(logger.SentryConfig{
			DSN:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}, warmup.RunIDExtractor())
	}
	return logger.New(warmup.RunIDExtractor())
}
