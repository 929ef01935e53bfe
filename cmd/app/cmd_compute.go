package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"EquityPulse/internal/di"
	"EquityPulse/internal/usecase"
	"EquityPulse/pkg/util"

	"github.com/spf13/cobra"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute and persist features for one date",
	Long: `Compute every feature for the given as-of date (default: today) and print
the run report. The date is resolved to the latest trading day on or
before it.

Examples:
  equitypulse compute
  equitypulse compute --as-of 2024-03-15`,
	RunE: runCompute,
}

var computeAsOf string

func init() {
	rootCmd.AddCommand(computeCmd)
	computeCmd.Flags().StringVar(&computeAsOf, "as-of", "", "as-of date YYYY-MM-DD (default: today)")
}

func runCompute(cmd *cobra.Command, args []string) error {
	asOf, ok := util.ParseDate(computeAsOf)
	if !ok {
		return fmt.Errorf("invalid --as-of %q, expected YYYY-MM-DD", computeAsOf)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tools, err := di.InitializeTools(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer tools.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Engine.RunTimeout)
	defer cancel()

	report, err := tools.Engine.Run(ctx, asOf)
	if errors.Is(err, usecase.ErrRunInProgress) {
		return fmt.Errorf("another run for this date is in progress")
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d entities failed", len(report.Failures))
	}
	return nil
}
