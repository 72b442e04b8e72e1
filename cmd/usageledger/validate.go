package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/usageledger/adapters/sqlite"
	"github.com/artpar/usageledger/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the UsageLedger configuration file.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Pricing rates parse as exact decimals
  - Database is writable (optional)

Examples:
  usageledger validate
  usageledger validate --config /etc/usageledger/config.yaml`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if database is writable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	fmt.Printf("Validating %s...\n\n", cfgFile)

	// Check file exists
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Printf("  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Printf("  %s Config file exists\n", checkMark)

	// Load and validate config
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config syntax valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config syntax valid\n", checkMark)

	// Show config summary
	table, err := cfg.Table()
	if err != nil {
		fmt.Printf("  %s Pricing rates parse\n", crossMark)
		return fmt.Errorf("pricing error: %w", err)
	}
	fmt.Printf("  %s Pricing rates parse\n", checkMark)

	perMinute, perDay, aiPerDay := cfg.ToLimits()
	fmt.Printf("  %s Server: %s:%d\n", checkMark, cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)
	fmt.Printf("  %s Limits: %d/min, %d/day, %d AI/day\n", checkMark, perMinute, perDay, aiPerDay)
	fmt.Printf("  %s Models priced: %d\n", checkMark, len(table.Known()))

	// Optional: check database
	if validateCheckDatabase {
		if err := checkDatabaseWritable(cfg.Database.DSN); err != nil {
			fmt.Printf("  %s Database writable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database writable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkDatabaseWritable(dsn string) error {
	db, err := sqlite.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
