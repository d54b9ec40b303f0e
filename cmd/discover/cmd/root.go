// Package cmd implements the discover CLI commands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/FairHead/eventourismo-discover/pkg/logging"
)

// Version information set by main.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "discover",
	Short: "Multi-provider venue and event ingestion",
	Long: `Discover sweeps venue and event providers (OpenStreetMap Overpass,
Ticketmaster, Eventbrite) over a configured territory and consolidates
their records into one canonical, deduplicated registry.

Credentials and the database connection are read from the environment
(or a .env file): DISCOVER_PG_DSN, TICKETMASTER_API_KEY, EVENTBRITE_TOKEN.`,
	SilenceUsage: true,
}

// Execute runs the root command with signal-aware context.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	// A .env file is a local convenience; explicit env always wins.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
