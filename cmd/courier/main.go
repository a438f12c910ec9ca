package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pmarren/courier/internal/config"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "courier",
		Short: "Courier - agentic email assistant session engine",
		Long: `Courier drives streaming agentic-reasoning sessions against an email
assistant backend. This CLI provides interactive chat, session management,
telemetry reports, and the API server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Best-effort; a missing .env is not an error.
			_ = godotenv.Load()

			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		chatCmd(),
		newCmd(),
		listCmd(),
		showCmd(),
		deleteCmd(),
		exportCmd(),
		importCmd(),
		statsCmd(),
		configCmd(),
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configCmd shows current configuration
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Current configuration:")
			fmt.Println()

			fmt.Println("Backend:")
			fmt.Printf("  URL:           %s\n", cfg.Backend.URL)
			fmt.Printf("  Model:         %s\n", cfg.Backend.Model)
			fmt.Printf("  Max Days Back: %d\n", cfg.Backend.MaxDaysBack)
			fmt.Printf("  Token:         %s\n", maskSecret(cfg.Backend.Token))
			fmt.Printf("  Status:        %s\n", boolStatus(cfg.HasCredential()))
			fmt.Println()

			fmt.Println("Storage:")
			fmt.Printf("  Data Dir:   %s\n", cfg.Storage.DataDir)
			fmt.Printf("  PostgreSQL: %s\n", maskSecret(cfg.Storage.PostgresURL))
			fmt.Printf("  Backend:    %s\n", storageBackendName())
			fmt.Println()

			fmt.Println("Stream:")
			fmt.Printf("  Conflict Policy: %s\n", cfg.Stream.ConflictPolicy)
			fmt.Println()

			fmt.Println("Monitor:")
			fmt.Printf("  Probe Interval: %ds\n", cfg.Monitor.ProbeIntervalSeconds)
			fmt.Println()

			fmt.Println("Server:")
			fmt.Printf("  Host:         %s\n", cfg.Server.Host)
			fmt.Printf("  Port:         %d\n", cfg.Server.Port)
			fmt.Printf("  CORS Origins: %v\n", cfg.Server.CORSOrigins)
			fmt.Println()

			fmt.Println("Autosave:")
			fmt.Printf("  Enabled:          %t\n", cfg.Autosave.Enabled)
			fmt.Printf("  Debounce:         %dms\n", cfg.Autosave.DebounceMs)
			fmt.Printf("  Analytics Window: %d days\n", cfg.Autosave.AnalyticsWindowDays)
			fmt.Println()

			fmt.Println("Environment variables:")
			fmt.Println("  COURIER_BACKEND_URL, COURIER_BACKEND_TOKEN, COURIER_BACKEND_MODEL")
			fmt.Println("  COURIER_MAX_DAYS_BACK, COURIER_DATA_DIR, COURIER_POSTGRES_URL")
			fmt.Println("  COURIER_CONFLICT_POLICY, COURIER_PROBE_INTERVAL_SECONDS")
			fmt.Println("  COURIER_SERVER_HOST, COURIER_SERVER_PORT, COURIER_CORS_ORIGINS")
			fmt.Println("  COURIER_AUTOSAVE_ENABLED, COURIER_AUTOSAVE_DEBOUNCE_MS, COURIER_ANALYTICS_WINDOW_DAYS")

			return nil
		},
	}
}

// versionCmd shows version information
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Courier %s\n", version)
			fmt.Printf("  Commit:     %s\n", commit)
			fmt.Printf("  Build Date: %s\n", buildDate)
		},
	}
}
