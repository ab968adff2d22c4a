package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/WilliamHails/7th-sem-project/internal/config"
	"github.com/WilliamHails/7th-sem-project/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "face-attendance",
	Short: "Face recognition attendance backend",
	Long: `Face Attendance enrolls students from face photos, recognizes them from
camera captures and records attendance for class sessions.

Face embeddings are computed by an external embedding server; students,
classes, sessions and attendance live in PostgreSQL.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	cfg := config.Load()
	logger.Configure(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Format != "json",
	})
}
