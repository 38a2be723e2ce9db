// Command server runs the labqc HTTP API without the CLI wrapper, for
// container images that only need the service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/labqc-mcp-server/internal/api"
	"github.com/labqc-mcp-server/internal/app"
	"github.com/labqc-mcp-server/internal/config"
	"github.com/labqc-mcp-server/internal/logging"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize pipeline")
	}
	defer a.Close()

	server := api.NewServer(configManager, api.Dependencies{
		Logger:   a.Logger,
		Matcher:  a.Matcher,
		Pipeline: a.Pipeline,
		Rerun:    a.Rerun,
		Gate:     a.Gate,
		Store:    a.Store,
		Cache:    a.Cache,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	logger.Infof("Starting labqc API on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		a.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
