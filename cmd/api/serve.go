package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"callos/internal/auth"
	"callos/internal/config"
	"callos/internal/observability"
	"callos/internal/ratelimit"
	"callos/internal/store"
	"callos/pkg/logger"
	"callos/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply schema migrations before serving")
	return cmd
}

func runServe(parent context.Context, migrate bool) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	log := logger.NewWithOptions(cfg.App.Env, logger.Options{File: cfg.Log.File})
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth init failed: %w", err)
	}

	db, closeDB, err := store.Open(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB() }()

	if migrate {
		if err := store.Migrate(db); err != nil {
			return err
		}
		log.Info("schema migrated")
	}

	limiter, closeLimiter, err := newLimiter(rootCtx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	metrics := observability.New()
	h := newHandlers(cfg, db, authManager, metrics)
	r := newRouter(cfg, log, h, metrics, limiter)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "db", cfg.DB.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
	return nil
}

// newLimiter builds the configured rate limiter. A nil limiter disables rate limiting.
func newLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, func(), error) {
	noop := func() {}
	switch cfg.RateLimit.Store {
	case config.RateLimitMemory:
		return ratelimit.NewMemoryStore(cfg.RateLimit.Requests, cfg.RateLimit.Window), noop, nil
	case config.RateLimitRedis:
		rdb, err := utils.OpenRedis(ctx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			return nil, nil, fmt.Errorf("redis init failed: %w", err)
		}
		return ratelimit.NewRedisStore(rdb, "callos:ratelimit", cfg.RateLimit.Requests, cfg.RateLimit.Window),
			func() { _ = rdb.Close() }, nil
	default:
		return nil, noop, nil
	}
}
