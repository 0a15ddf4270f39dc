package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskforge/taskforge/internal/cache"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/db"
	httpx "github.com/taskforge/taskforge/internal/http"
	"github.com/taskforge/taskforge/internal/observability"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	// tracing
	shutdownTracer, err := observability.InitTracer(context.Background(), "taskforge", cfg.OTELEndpoint)

	if err != nil {
		log.Warn("tracing disabled", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	// database
	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("could not connect to database", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	startupCtx, cancelStartup := config.WithTimeout(30 * time.Second)

	if err := db.Migrate(startupCtx, pool); err != nil {
		cancelStartup()
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureAdminUser(startupCtx, pool, cfg); err != nil {
		cancelStartup()
		log.Error("admin seeding failed", "err", err)
		os.Exit(1)
	}

	cancelStartup()

	// redis list cache is optional
	var listCache *cache.TaskListCache

	if cfg.RedisAddr != "" {
		listCache = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := config.WithTimeout(2 * time.Second)
		if err := listCache.Ping(pingCtx); err != nil {
			log.Warn("redis unavailable, task list caching disabled", "err", err)
			_ = listCache.Close()
			listCache = nil
		}
		cancel()
	}

	if listCache != nil {
		defer listCache.Close()
	}

	// set up routers with the log
	router := httpx.NewRouter(log, pool, cfg, listCache)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
