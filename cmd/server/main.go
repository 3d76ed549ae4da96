// Package main is the entry point for the stockflow API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"stockflow/internal/config"
	"stockflow/internal/core/tx"
	"stockflow/internal/domain/auth"
	"stockflow/internal/domain/warehouse"
	v1 "stockflow/internal/infrastructure/http/v1"
	"stockflow/internal/infrastructure/http/v1/middleware"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/internal/infrastructure/storage/postgres/warehouse_repo"
	"stockflow/pkg/logger"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting stockflow server", "env", cfg.App.Env, "version", version)

	// --- Database ---
	dsn, err := cfg.ConnectionString(config.DefaultConnection)
	if err != nil {
		log.Fatalw("database not configured", "error", err)
	}

	poolCfg := postgres.DefaultPoolConfig(dsn)
	poolCfg.ApplicationName = cfg.App.Name
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Domain ---
	repo := warehouse_repo.New(txManager, warehouse_repo.Options{
		AtomicInsert: cfg.Receipts.Atomic,
	})

	// Without atomic receipts every step runs on its own connection.
	var serviceTx tx.Manager
	if cfg.Receipts.Atomic {
		serviceTx = txManager
	}
	service := warehouse.NewService(repo, serviceTx)

	// --- Auth ---
	var validator middleware.JWTValidator
	if cfg.Auth.JWTSecret != "" {
		validator = auth.NewJWTService(auth.DefaultJWTConfig(cfg.Auth.JWTSecret, cfg.Auth.Issuer))
		log.Info("bearer auth enabled for receipt writes")
	} else {
		log.Warn("auth.jwtSecret is empty, receipt writes are unauthenticated")
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:         pool,
		Logger:       log,
		Service:      service,
		JWTValidator: validator,
		AppName:      cfg.App.Name,
		Version:      version,
		Development:  cfg.IsDevelopment(),
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      gzhttp.GzipHandler(router),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr, "atomic_receipts", cfg.Receipts.Atomic)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	pool.LogStats(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
