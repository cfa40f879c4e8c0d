// AngelaMos | 2026
// migrate.go

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wealthsupernova/supernova/internal/core"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, (*core.Database).MigrateUp)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, (*core.Database).MigrateDown)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd, (*core.Database).MigrationStatus)
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func withDatabase(cmd *cobra.Command, fn func(*core.Database, context.Context) error) error {
	ctx := cmd.Context()

	_, db, logger, err := env(ctx)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exits next

	if err := fn(db, ctx); err != nil {
		return err
	}

	logger.Info("migration command finished", "command", cmd.CommandPath())
	return nil
}
