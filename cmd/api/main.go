package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"freightrate/internal/config"
	"freightrate/internal/db"
	"freightrate/internal/logging"
	"freightrate/internal/rate"
	"freightrate/internal/server"
)

func main() {
	cfg := config.Load()

	log, err := logging.Initialize(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatal("DATABASE_URL not set. Please export DATABASE_URL before running.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.Options{
		AppName:          "freightrate-api",
		MaxConns:         int32(cfg.DBMaxConns),
		StatementTimeout: cfg.DBStatementTimeout,
	})
	if err != nil {
		cancel()
		log.Fatal("failed to connect db", zap.Error(err))
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			cancel()
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations applied")
	}
	cancel()

	store := db.NewStore(pool)
	regions := rate.NewRegionResolver(store, cfg.RegionLookupTimeout, log.Named("regions"))
	engine := rate.NewEngine(regions, store,
		rate.WithSeasonalityTimeout(cfg.SeasonalityTimeout),
		rate.WithLogger(log.Named("engine")),
	)

	h := server.New(server.Options{
		Calculator:    engine,
		History:       store,
		Logger:        log.Named("http"),
		CORSOrigins:   cfg.CORSOrigins,
		CalcRateLimit: cfg.CalcRateLimit,
		CalcRateBurst: cfg.CalcRateBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("api listening", zap.String("addr", srv.Addr))

	// graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.Stringer("signal", sig))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			pool.Close()
			logging.Sync()
			os.Exit(1)
		}
	}
}
