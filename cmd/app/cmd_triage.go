package main

import (
	"encoding/json"
	"fmt"
	"os"

	"EquityPulse/internal/di"
	"EquityPulse/internal/domain/models"
	"EquityPulse/internal/usecase"

	"github.com/spf13/cobra"
)

var triageCmd = &cobra.Command{
	Use:   "triage",
	Short: "Print the ranked monitoring view",
	Long: `Print every security's latest features ranked by the chosen key, highest
first with missing values last.

Examples:
  equitypulse triage
  equitypulse triage --sort drawdown --min-weight 0.01 --limit 20
  equitypulse triage --format json`,
	RunE: runTriage,
}

var (
	triageSort      string
	triageMinWeight float64
	triageLimit     int
	triageFormat    string
)

func init() {
	rootCmd.AddCommand(triageCmd)
	triageCmd.Flags().StringVar(&triageSort, "sort", models.TriageSortScore, "sort key (score|drawdown|vol_spike)")
	triageCmd.Flags().Float64Var(&triageMinWeight, "min-weight", 0, "minimum portfolio weight")
	triageCmd.Flags().IntVar(&triageLimit, "limit", 200, "maximum rows (1-1000)")
	triageCmd.Flags().StringVar(&triageFormat, "format", "table", "output format (table|json)")
}

func validateTriageFlags() error {
	switch triageSort {
	case models.TriageSortScore, models.TriageSortDrawdown, models.TriageSortVolSpike:
	default:
		return fmt.Errorf("--sort must be one of score, drawdown, vol_spike")
	}
	if triageLimit < 1 || triageLimit > 1000 {
		return fmt.Errorf("--limit must be between 1 and 1000")
	}
	if triageMinWeight < 0 || triageMinWeight > 1 {
		return fmt.Errorf("--min-weight must be between 0 and 1")
	}
	if triageFormat != "table" && triageFormat != "json" {
		return fmt.Errorf("--format must be table or json")
	}
	return nil
}

func runTriage(cmd *cobra.Command, args []string) error {
	if err := validateTriageFlags(); err != nil {
		return err
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

	rows, err := tools.Query.Triage(cmd.Context(), models.TriageFilter{
		SortBy:    triageSort,
		MinWeight: triageMinWeight,
		Limit:     triageLimit,
	})
	if err != nil {
		return err
	}

	if triageFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	return usecase.RenderTriage(os.Stdout, rows)
}
