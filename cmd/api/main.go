package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factcheck/backend/internal/app"
	"factcheck/backend/internal/auth"
	"factcheck/backend/internal/config"
	"factcheck/backend/internal/httpapi"
	"factcheck/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.Environment == "development"})
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.Build(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to build pipeline", logger.Error(err))
		os.Exit(1)
	}
	defer deps.Close()

	var historyStore httpapi.HistoryStore
	if deps.History != nil {
		historyStore = deps.History
	}
	h := httpapi.NewHandler(deps.Orchestrator, historyStore, deps.Directory, auth.NewVerifier(cfg), appLogger, cfg.MaxImageBytes)
	handler := httpapi.NewRouter(cfg, h, deps.Metrics.Handler())

	srv := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.PipelineTimeout + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("api listening", logger.String("addr", cfg.ListenAddress()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("listen failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("shutdown error", logger.Error(err))
	}
}
