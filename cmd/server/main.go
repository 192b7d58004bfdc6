package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecoloimp/internal/config"
	"ecoloimp/internal/infra"
	"ecoloimp/internal/middleware"
	"ecoloimp/internal/rbac"
	"ecoloimp/internal/repository"
	"ecoloimp/internal/router"
	"ecoloimp/internal/service"
	"ecoloimp/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger. dev: pretty, prod: JSON
	if cfg.Env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.RunMigrations)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Permissions ──────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	permisoRepo := repository.NewPermisoRepository(db)
	resolver := rbac.NewResolver(permisoRepo, cfg.PermisosCacheTTL())
	if err := service.NewPermisoService(permisoRepo, usuarioRepo, resolver).Sincronizar(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to sync permission catalog")
	}

	// ── Metrics ──────────────────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := infra.NewMetrics(reg)

	// ── Redis, queues and workers ────────────────────────────────────────────
	// Redis is optional in development: without it alerts are only logged
	// and the rate limiter stays in memory.
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		if cfg.Env == "production" {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Warn().Err(err).Msg("redis unavailable, queued jobs disabled")
		rdb = nil
	}

	smtpCB := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	mailer := infra.NewMailer(cfg, smtpCB)
	dispatcher := worker.NewDispatcher(rdb, metrics)
	if rdb != nil {
		worker.StartWorkerPool(ctx, rdb, &worker.WorkerHandlers{
			Alertas: worker.NewAlertaWorker(mailer, cfg.AlertasEmail),
			Email:   worker.NewEmailWorker(mailer),
		}, cfg.WorkerPoolSize)
	}

	var limiter middleware.ContadorStore
	var purgador worker.Purgador
	if cfg.RateLimitBackend == "redis" && rdb != nil {
		limiter = middleware.NewRedisStore(rdb, "ratelimit:")
	} else {
		mem := middleware.NewMemoryStore()
		limiter, purgador = mem, mem
	}

	scheduler := worker.NewScheduler(repository.NewEquipoRepository(db), dispatcher, purgador)
	if err := scheduler.Start(ctx, cfg.MantenimientoCron); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	r := router.New(cfg, router.Deps{
		DB:         db,
		Redis:      rdb,
		Resolver:   resolver,
		Metrics:    metrics,
		Gatherer:   reg,
		Dispatcher: dispatcher,
		Limiter:    limiter,
		SMTP:       smtpCB,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("Ecoloimp backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
