package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
)

// migrationsDir is the directory containing goose SQL migrations, relative
// to the working directory the server is launched from.
const migrationsDir = "migrations"

// slogGooseLogger adapts goose's logger interface to slog.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Fatalf(format string, v ...any) {
	slog.Error(fmt.Sprintf(format, v...), "component", "migrations")
}

func (l *slogGooseLogger) Printf(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...), "component", "migrations")
}

// runMigrations applies any pending database migrations at startup.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	goose.SetLogger(&slogGooseLogger{})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	logger.Info("Database migrations applied")
	return nil
}
