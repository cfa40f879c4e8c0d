// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wealthsupernova/supernova/internal/config"
	"github.com/wealthsupernova/supernova/internal/core"
)

var (
	// Version is set via ldflags during build.
	Version = "dev"

	configPath string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "supernova",
	Short:         "Operator tooling for the WealthSuperNova newsletter backend",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pruneTokensCmd)
}

// env loads configuration and opens the database. Callers close db.
func env(ctx context.Context) (*config.Config, *core.Database, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger := core.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, db, logger, nil
}
