package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/altitrek/tourhub/internal/cache"
	"github.com/altitrek/tourhub/internal/config"
	"github.com/altitrek/tourhub/internal/db"
	httpx "github.com/altitrek/tourhub/internal/http"
	"github.com/altitrek/tourhub/internal/observability"
	"github.com/altitrek/tourhub/internal/queue/redisclient"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	// tracing
	shutdownCtx, cancelInit := config.WithTimeout(5 * time.Second)
	shutdownTracer, err := observability.InitTracer(shutdownCtx, "tourhub-api", cfg.OTLPEndpoint)
	cancelInit()
	if err != nil {
		log.Warn("tracer init failed, continuing without traces", "err", err)
		shutdownTracer = nil
	}

	// database
	pool, err := db.NewPool(cfg.DBURL)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	seedCtx, cancelSeed := config.WithTimeout(5 * time.Second)
	if err := db.EnsureAdminUser(seedCtx, pool, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
	}
	cancelSeed()

	// metrics
	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	// list cache: shared via redis when configured, per-process otherwise
	var listCache cache.Store = cache.NewMemory(5 * time.Second)

	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rc.Close()

		pingCtx, cancelPing := config.WithTimeout(2 * time.Second)
		err = rc.Ping(pingCtx)
		cancelPing()

		if err != nil {
			log.Warn("redis unreachable, falling back to in-memory cache", "err", err)
		} else {
			listCache = cache.NewRedis(rc.Raw(), 5*time.Second, "tourhub:lists:")
		}
	}

	// set up the router
	router := httpx.NewRouter(httpx.Deps{
		Cfg:       cfg,
		Logger:    log,
		Pool:      pool,
		ListCache: listCache,
		Prom:      prom,
		Registry:  registry,
	})

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
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
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
			return
		}

		if shutdownTracer != nil {
			if err := shutdownTracer(ctx); err != nil {
				log.Error("tracer shutdown failed", "err", err)
			}
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
