/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the lease engine. Handles configuration,
  dependency injection, and graceful shutdown.

COMMANDS:
  serve              Run the HTTP server with the sweep scheduler
  sweep expirations  Run the lease expiration sweep once and exit
  sweep overdue      Run the overdue payment sweep once and exit
  seed               Load a small demo dataset (dev only)

CONFIGURATION:
  Environment variables (a .env file is loaded if present):
    PORT                   HTTP server port (default: 8080)
    DB_PATH                SQLite database path (default: lease-engine.db)
    SWEEP_EXPIRATION_HOUR  Hour of day for the expiration sweep (default: 2)
    SWEEP_OVERDUE_HOUR     Hour of day for the overdue sweep (default: 3)
    SWEEPS_ENABLED         Set to "false" to disable the scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweep scheduler
  2. Stop accepting new connections, drain active requests (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  DB_PATH=./data/leases.db ./lease-engine serve

  # Run a sweep from cron instead of the built-in scheduler
  SWEEPS_ENABLED=false ./lease-engine serve &
  ./lease-engine sweep overdue

SEE ALSO:
  - api/server.go: Router configuration
  - api/scheduler.go: Daily sweep scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lodgia/lease-engine/api"
	"github.com/lodgia/lease-engine/lifecycle"
	"github.com/lodgia/lease-engine/store/sqlite"
)

func main() {
	// Missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "lease-engine",
		Short:        "Lease and payment lifecycle engine",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd(), sweepCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openEngine builds the orchestrator on the configured SQLite store. The
// store backs every interface, so it is also returned for Close.
func openEngine() (*lifecycle.Orchestrator, *sqlite.Store, error) {
	store, err := sqlite.New(envString("DB_PATH", "lease-engine.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	engine := lifecycle.New(store, store, store, store)
	engine.Runs = store
	engine.Events = lifecycle.LogSink{}
	return engine, store, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			scheduler := api.NewSweepScheduler(engine)
			scheduler.ExpirationHour = envInt("SWEEP_EXPIRATION_HOUR", 2)
			scheduler.OverdueHour = envInt("SWEEP_OVERDUE_HOUR", 3)
			scheduler.Enabled = envString("SWEEPS_ENABLED", "true") != "false"
			scheduler.Start()
			defer scheduler.Stop()

			router := api.NewRouter(api.NewHandler(engine))
			port := envInt("PORT", 8080)

			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", port),
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				log.Printf("Server starting on http://localhost:%d", port)
				log.Printf("API available at http://localhost:%d/api", port)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("Server failed: %v", err)
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Println("Shutting down server...")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}

			log.Println("Server stopped")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a maintenance sweep once and exit",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "expirations",
		Short: "Expire leases past their end date",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := engine.SweepExpirations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("expirations: %d processed, %d failed\n", result.Processed, result.Failed)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "overdue",
		Short: "Mark overdue payments and assess late fees",
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, store, err := openEngine()
			if err != nil {
				return err
			}
			defer store.Close()

			result, err := engine.SweepOverdue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("overdue: %d processed, %d failed\n", result.Processed, result.Failed)
			return nil
		},
	})

	return cmd
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", name, v, fallback)
		return fallback
	}
	return n
}
