package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpar/usageledger/adapters/clock"
	"github.com/artpar/usageledger/adapters/sqlite"
	"github.com/artpar/usageledger/app"
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Recompute daily rollups for a date",
	Long: `Recompute the daily, per-model, and per-endpoint rollups for one
UTC date from the event ledger.

Recomputing is idempotent: the rollup rows are fully replaced from the
ledger, so running it twice for the same date changes nothing.

Examples:
  usageledger rollup                    # today (UTC)
  usageledger rollup --date 2026-03-15`,
	RunE: runRollup,
}

var rollupDate string

func init() {
	rootCmd.AddCommand(rollupCmd)

	rollupCmd.Flags().StringVar(&rollupDate, "date", "", "UTC date to recompute (YYYY-MM-DD, default today)")
}

func runRollup(cmd *cobra.Command, args []string) error {
	date := time.Now().UTC()
	if rollupDate != "" {
		var err error
		date, err = time.ParseInLocation("2006-01-02", rollupDate, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", rollupDate)
		}
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	aggregator := app.NewAggregatorService(app.AggregatorDeps{
		Events:  sqlite.NewEventStore(db),
		Rollups: sqlite.NewRollupStore(db),
		Clock:   clock.Real{},
	})

	result, err := aggregator.Recompute(context.Background(), date)
	if err != nil {
		return fmt.Errorf("rollup failed: %w", err)
	}

	fmt.Printf("Rollup for %s:\n", result.Date.Format("2006-01-02"))
	fmt.Printf("  events:         %d\n", result.Events)
	fmt.Printf("  daily rows:     %d\n", result.Daily)
	fmt.Printf("  model rows:     %d\n", result.Model)
	fmt.Printf("  endpoint rows:  %d\n", result.Endpoint)
	return nil
}
