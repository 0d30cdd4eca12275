// Command notifyd is the DRVN notification dispatch server.
//
// Usage:
//
//	notifyd
//	API_PORT=8080 notifyd
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/76ahmad/garage-management-system/internal/api"
	"github.com/76ahmad/garage-management-system/internal/api/handler"
	"github.com/76ahmad/garage-management-system/internal/cache"
	"github.com/76ahmad/garage-management-system/internal/config"
	"github.com/76ahmad/garage-management-system/internal/db"
	"github.com/76ahmad/garage-management-system/internal/listener"
	"github.com/76ahmad/garage-management-system/internal/maintenance"
	"github.com/76ahmad/garage-management-system/internal/notify"
	"github.com/76ahmad/garage-management-system/internal/sweep"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Apply schema migrations
	if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Push delivery (disabled when no credentials are configured)
	sender, err := notify.NewFCMSender(ctx, cfg.FCMCredentialsFile, logger)
	if err != nil {
		logger.Error("Failed to initialize FCM", "error", err)
		os.Exit(1)
	}
	if sender == nil {
		logger.Info("Push delivery disabled (no FIREBASE_CREDENTIALS_FILE)")
	}

	store := notify.NewPGStore(pool.Pool)
	dispatcher := notify.NewDispatcher(store, sender, logger)

	// Scheduled sweeps
	runner := sweep.NewRunner(store, dispatcher, cfg.SweepWorkers, logger)
	scheduler, err := sweep.Schedule(ctx, runner, cfg, logger)
	if err != nil {
		logger.Error("Failed to schedule sweeps", "error", err)
		os.Exit(1)
	}
	logger.Info("Sweeps scheduled",
		"timezone", cfg.Timezone,
		"entries", len(scheduler.Entries()))

	// Start LISTEN/NOTIFY consumer for real-time row events
	go listener.Start(ctx, cfg.DatabaseURL, store, dispatcher, logger)

	// Start maintenance ticker (notification log cleanup)
	go maintenance.Start(ctx, store, maintenance.Config{CleanupInterval: cfg.CleanupInterval}, logger)

	// Create router
	h := handler.New(dispatcher, store, pool, appCache, cfg)
	router := api.NewRouter(h, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting DRVN Notification API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
