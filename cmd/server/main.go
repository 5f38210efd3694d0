// Package main implements the entry point for the visiontags server, which
// analyzes product images for Shopify shops and writes the suggested
// attributes and labels back to the catalog.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/satpugnet/shopify-visiontags-ai/internal/config"
	"github.com/satpugnet/shopify-visiontags-ai/internal/platform/logger"
)

// main loads configuration, wires the application, and runs the HTTP server
// until a shutdown signal arrives.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to run application: %v", err)
	}
}

// run holds the real startup sequence so main stays a one-liner around the
// error handling.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(logger.LoggerConfig{Level: cfg.Server.LogLevel})
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	if err := runMigrations(db, appLogger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx := context.Background()
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
