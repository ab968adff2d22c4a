package cmd

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WilliamHails/7th-sem-project/internal/config"
	"github.com/WilliamHails/7th-sem-project/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the attendance HTTP API.

The server connects to PostgreSQL (applying pending migrations), loads the
canonical embeddings into the configured matcher and serves enrollment,
recognition and management endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8000)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort prefers flags over configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := cfg.Web.Port
	host := cfg.Web.Host
	if p := mustGetInt(cmd, "port"); p > 0 {
		port = p
	}
	if h := mustGetString(cmd, "host"); h != "" {
		host = h
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("Connecting to PostgreSQL database...")
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.embedding.Health(ctx); err != nil {
		fmt.Printf("Warning: embedding server at %s is not reachable: %v\n", cfg.Embedding.URL, err)
	}

	if cfg.Auth.Enabled() && cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
		fmt.Println("Warning: JWT_SECRET is not set, using a random secret (tokens expire on restart)")
	}

	port, host := resolveServeHostPort(cmd, cfg)
	server := web.NewServer(cfg, port, host, b.service, b.embedding)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", host, port)
	if !cfg.Auth.Enabled() {
		fmt.Println("Warning: ADMIN_PASSWORD_HASH is not set, admin endpoints are open")
	}
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate secret: %v", err))
	}
	return hex.EncodeToString(b)
}
