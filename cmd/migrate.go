package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WilliamHails/7th-sem-project/internal/config"
	"github.com/WilliamHails/7th-sem-project/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply pending PostgreSQL migrations and list the applied ones.

Use --status to only show which migrations are pending.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "Show pending migrations without applying them")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	statusOnly := mustGetBool(cmd, "status")

	ctx := context.Background()
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.NewPool(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	pending, err := pool.PendingMigrations(ctx)
	if err != nil {
		return err
	}

	if statusOnly {
		if len(pending) == 0 {
			fmt.Println("Database is up to date")
			return nil
		}
		fmt.Printf("%d pending migrations:\n", len(pending))
		for _, name := range pending {
			fmt.Printf("  %s\n", name)
		}
		return nil
	}

	if err := pool.Migrate(ctx); err != nil {
		return err
	}
	fmt.Printf("Applied %d migrations\n", len(pending))

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\nApplied migrations:")
	for _, name := range applied {
		fmt.Printf("  %s\n", name)
	}
	return nil
}
