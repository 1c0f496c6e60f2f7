package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/K-Pomian/synthetify-protocol/internal/config"
	"github.com/K-Pomian/synthetify-protocol/internal/decimal"
	"github.com/K-Pomian/synthetify-protocol/internal/engine"
	"github.com/K-Pomian/synthetify-protocol/internal/handler"
	"github.com/K-Pomian/synthetify-protocol/internal/service"
	"github.com/K-Pomian/synthetify-protocol/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Stores.
	listStore := store.NewAssetsListStore()
	webhookStore := store.NewWebhookStore()

	// Services (webhook first, the asset service dispatches through it).
	webhookSvc := service.NewWebhookService(webhookStore, listStore, cfg.WebhookTimeout)
	assetSvc := service.NewAssetService(listStore, webhookSvc, cfg.AdminKey, cfg.PriceMaxAge)

	accruer, err := engine.NewAccruer(
		cfg.AccrualInterval,
		decimal.FromInterestRate(cfg.InterestRate),
		time.Now(),
	)
	if err != nil {
		logger.Error("failed to create accruer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	router := handler.NewRouter(assetSvc, webhookSvc, accruer, logger)

	// Start accrual goroutine with cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	accruer.Start(ctx)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("server starting",
			slog.String("addr", addr),
			slog.Duration("accrual_interval", cfg.AccrualInterval),
			slog.Uint64("price_max_age", cfg.PriceMaxAge),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then cancel context to stop accrual.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped", slog.String("debt", accruer.Snapshot().Debt.String()))
}
