package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/usageledger/bootstrap"
	"github.com/artpar/usageledger/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the usage accounting server",
	Long: `Start the UsageLedger HTTP server.

The server will:
  - Load configuration from usageledger.yaml (or --config)
  - Or load configuration from USAGELEDGER_* environment variables
  - Open and migrate the database
  - Accept priced usage reports at POST /v1/usage
  - Serve analytics and trigger scheduled rollups

The limits, pricing, and logging sections of the config file reload
live on change or SIGHUP; server address and database DSN require a
restart.

Environment variables (for Docker deployments):
  USAGELEDGER_DATABASE_DSN       - Database path (default: usageledger.db)
  USAGELEDGER_SERVER_PORT        - Server port (default: 8080)
  USAGELEDGER_LIMITS_PER_MINUTE  - Per-project requests per minute
  USAGELEDGER_LOG_LEVEL          - Log level: debug, info, warn, error

Examples:
  usageledger serve
  usageledger serve --config /etc/usageledger/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if _, err := os.Stat(path); os.IsNotExist(err) && !rootCmd.PersistentFlags().Changed("config") {
		path = ""
	}

	web.Version = version

	a, err := bootstrap.New(path)
	if err != nil {
		return err
	}

	return a.Run()
}
