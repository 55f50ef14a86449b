package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"sweeper_server/config"
	"sweeper_server/internal/bootstrap"
	"sweeper_server/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Initialize logger early
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "sweeper",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}

	sweeper, cleanup, err := bootstrap.NewSweeper(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize sweeper: %v", err)
	}
	defer cleanup()

	hcCtx, hcCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := sweeper.Dependencies().HealthCheck(hcCtx); err != nil {
		hcCancel()
		logger.Fatal("Startup health check failed: %v", err)
	}
	hcCancel()

	// Graceful shutdown with timeout
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down sweeper (timeout: %v)...", shutdownTimeout)

		done := make(chan struct{})
		go func() {
			sweeper.Stop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("Sweeper shut down gracefully")
		case <-time.After(shutdownTimeout):
			logger.Warn("Sweeper shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Info("Starting sweeper (instance: %s)...", cfg.InstanceID)
	sweeper.Start()
}
