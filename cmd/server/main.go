/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load environment configuration
  2. Initialize SQLite store (doubles as the settings store)
  3. Wire repository and tracker with the system clock
  4. Start the lifecycle scheduler
  5. Start the HTTP server with graceful shutdown

ENVIRONMENT:
  PORT               HTTP server port (default: 8080)
  DB_PATH            SQLite database path (default: quitpool.db,
                     ":memory:" for in-memory)
  LIFECYCLE_SCHEDULE Cron spec for the lifecycle job (default: @hourly)
  CORS_ORIGINS       Comma-separated allowed origins
  DEBUG              Verbose development logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain active requests
  (30s timeout), stop the scheduler, close the database.
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quitpool/challenge-engine/api"
	"github.com/quitpool/challenge-engine/config"
	"github.com/quitpool/challenge-engine/pool"
	"github.com/quitpool/challenge-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	clock := pool.SystemClock{}
	repo := pool.NewRepository(store, clock, store)
	tracker := pool.NewTracker(store, clock)

	handler := api.NewHandler(repo, tracker, logger)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	scheduler := api.NewLifecycleScheduler(repo, tracker, logger)
	if err := scheduler.Start(cfg.LifecycleSchedule); err != nil {
		logger.Fatal("failed to start lifecycle scheduler", zap.Error(err))
	}
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
