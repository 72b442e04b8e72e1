package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/usageledger/adapters/sqlite"
	"github.com/artpar/usageledger/config"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "usageledger",
	Short: "Usage accounting ledger for metered API calls",
	Long: `UsageLedger prices, records, and aggregates billed API calls.

Every reported call is priced from a per-model rate table, admitted
against per-project quota pools, and appended to a durable ledger.
Daily rollups aggregate cost by day, model, and endpoint.

Quick start:
  usageledger serve            # Start the HTTP API
  usageledger projects create  # Create a project
  usageledger keys mint        # Mint an API key for a project

Management:
  usageledger rollup    # Recompute rollups for a date
  usageledger validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "usageledger.yaml", "config file path")
}

// loadConfig reads the configured file, or falls back to defaults plus
// environment overrides when the default file is absent.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if _, err := os.Stat(path); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}
	return config.Load(path)
}

// openDatabase opens and migrates the configured database for CLI
// subcommands that work without the server.
func openDatabase() (*sqlite.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
