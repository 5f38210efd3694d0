package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the pgx driver for database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/satpugnet/shopify-visiontags-ai/internal/config"
)

// setupAppDatabase establishes a connection to the database and configures
// connection pools. Returns the database connection if successful, or an
// error if the connection fails.
func setupAppDatabase(cfg *config.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}
