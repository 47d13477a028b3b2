package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/settleops/recon-engine/internal/api"
	"github.com/settleops/recon-engine/internal/config"
	"github.com/settleops/recon-engine/internal/db"
	"github.com/settleops/recon-engine/internal/engine/classify"
	"github.com/settleops/recon-engine/internal/engine/matching"
	"github.com/settleops/recon-engine/internal/engine/rollback"
	"github.com/settleops/recon-engine/internal/engine/ttum"
	"github.com/settleops/recon-engine/internal/observability"
	"github.com/settleops/recon-engine/internal/runlock"
	"github.com/settleops/recon-engine/internal/service"
	"github.com/settleops/recon-engine/internal/store"
	"github.com/settleops/recon-engine/internal/store/postgres"
	"github.com/settleops/recon-engine/internal/worker"
)

// Run bootstraps the HTTP server and the hanging-record sweep worker,
// blocking until shutdown. DATABASE_URL and REDIS_URL are optional: without
// them the engine runs single-node on in-process state.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runStore store.RunStore = store.NewMemoryStore()
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		runStore = pg
		logger.Info("using postgres run store")
	} else {
		logger.Info("using in-memory run store")
	}

	var locker runlock.Locker = runlock.NewMemory()
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		locker = runlock.NewRedis(redisClient, cfg.RunLockTTL)
		logger.Info("using redis run lock", zap.Duration("ttl", cfg.RunLockTTL))
	}

	matcher := matching.New(cfg.Tolerance, cfg.MatchWorkers)
	classifier := classify.New(cfg.CutoffWindow, time.Now)
	generator := ttum.New(cfg.Accounts, time.Now)

	coordinator := service.NewCoordinator(runStore, locker, matcher, classifier)
	queries := service.NewQueryService(runStore)
	ingest := service.NewIngestService(runStore)
	ttums := service.NewTTUMService(runStore, locker, generator)
	rollbacks := rollback.NewManager(runStore, locker, time.Now)

	sweep := worker.NewHangingSweepWorker(coordinator).WithInterval(cfg.SweepInterval)
	stopSweep := sweep.Run(ctx)
	logger.Info("hanging sweep worker started", zap.Duration("interval", cfg.SweepInterval))

	router := api.NewRouter(cfg, logger, pool, redisClient, coordinator, queries, ingest, ttums, rollbacks)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping hanging sweep worker")
	stopSweep()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
