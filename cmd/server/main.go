package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/weather-service/internal/api"
	"github.com/neexbeast/weather-service/internal/config"
	"github.com/neexbeast/weather-service/internal/lock"
	"github.com/neexbeast/weather-service/internal/logging"
	"github.com/neexbeast/weather-service/internal/refresh"
	"github.com/neexbeast/weather-service/internal/storage"
	"github.com/neexbeast/weather-service/internal/weather"
	"github.com/neexbeast/weather-service/migrations"
)

const leasePrefix = "weather:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "err", err)
		os.Exit(1)
	}

	log := logging.New(os.Stdout, cfg)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Run migrations.
	var migrationFS fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		migrationFS = os.DirFS(cfg.MigrationsDir)
	}
	applied, err := storage.RunMigrations(ctx, pool, migrationFS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied", "new", applied)

	// Connect to Redis.
	redisClient, err := lock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	// Wire dependencies.
	repo := storage.NewRepository(pool)
	client := weather.NewClient(cfg.WeatherAPIURL, cfg.WeatherAPIKey, cfg.WeatherAPITimeout, log)
	svc := weather.NewService(client, repo, log)
	handlers := api.NewHandlers(svc, log)

	router := api.NewRouter(handlers, cfg.RateLimitPerMinute, pool, &redisPingerAdapter{client: redisClient}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RefreshEnabled {
		job := refresh.NewJob(client, repo, lock.NewLocker(redisClient, leasePrefix), cfg.Cities, cfg.UpdateInterval, log)
		scheduler := refresh.NewScheduler(job, cfg.UpdateInterval, log)
		if err := scheduler.Start(gctx); err != nil {
			return fmt.Errorf("starting refresh scheduler: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Stop()
			return nil
		})
	} else {
		log.Info("periodic refresh disabled")
	}

	g.Go(func() error {
		log.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	})

	// Graceful shutdown on SIGINT / SIGTERM or when the server fails.
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("server shut down cleanly")
	return nil
}

// redisPingerAdapter adapts redis.Client to api.Pinger.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
