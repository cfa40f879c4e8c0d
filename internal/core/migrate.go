// AngelaMos | 2026
// migrate.go

package core

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/wealthsupernova/supernova/internal/migrations"
)

const migrationsDir = "."

func prepareGoose() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// MigrateUp applies every pending migration.
func (d *Database) MigrateUp(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, d.DB.DB, migrationsDir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (d *Database) MigrateDown(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, d.DB.DB, migrationsDir); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrationStatus logs the applied state of each migration through goose.
func (d *Database) MigrationStatus(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.StatusContext(ctx, d.DB.DB, migrationsDir); err != nil {
		return fmt.Errorf("migration status: %w", err)
	}
	return nil
}
