package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/refx-online/omajinai/internal/adapters/beatmaps"
	"github.com/refx-online/omajinai/internal/adapters/engine"
	"github.com/refx-online/omajinai/internal/adapters/http/api"
	"github.com/refx-online/omajinai/internal/adapters/mq/bus"
	"github.com/refx-online/omajinai/internal/adapters/ranking"
	"github.com/refx-online/omajinai/internal/adapters/repository"
	"github.com/refx-online/omajinai/internal/app"
	"github.com/refx-online/omajinai/internal/config"
	"github.com/refx-online/omajinai/internal/domain/perf"
	"github.com/refx-online/omajinai/pkg/logger"
)

// version is stamped at build time.
var version = "dev"

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}

	if err := os.MkdirAll(cfg.BeatmapsPath, 0o755); err != nil {
		log.Error(ctx, "failed to create beatmaps directory", logger.Error(err))
		return
	}

	db, err := repository.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Error(ctx, "failed to open database", logger.Error(err))
		return
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	store := repository.New(db)
	leaderboard := ranking.New(redisClient)
	messageBus := bus.New(redisClient)

	beatmapOpts := []beatmaps.Option{beatmaps.WithCacheBound(cfg.CacheSize)}
	if cfg.BeatmapsServiceURL != "" {
		beatmapOpts = append(beatmapOpts, beatmaps.WithRemoteSource(cfg.BeatmapsServiceURL))
	}
	beatmapService := beatmaps.New(cfg.BeatmapsPath, beatmapOpts...)

	scoringEngine := engine.NewHTTPEngine(cfg.EngineURL)

	calculator := perf.New(beatmapService, scoringEngine,
		perf.WithResultCacheSize(cfg.ResultCacheSize),
	)
	recalculator := app.NewRecalculator(store, leaderboard, messageBus, beatmapService, scoringEngine,
		app.WithPassedObjects(cfg.RecalcPassedObjects),
	)

	svc := app.New(calculator, recalculator,
		app.WithLogger(log),
		app.WithStatusPublisher(messageBus),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, version)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}
