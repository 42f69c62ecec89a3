package database

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

func dialect(driver string) string {
	if driver == DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, db *DB) error {
	return RunMigrations(ctx, db, "up")
}

// RunMigrations executes a goose command (up, down, status, version, ...)
// against the embedded migration set.
func RunMigrations(ctx context.Context, db *DB, command string, args ...string) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(dialect(db.Driver)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db.DB, migrationsDir, args...); err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}
