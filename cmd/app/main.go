package main

import (
	"fmt"
	"os"

	"EquityPulse/pkg/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "equitypulse",
	Short: "Portfolio return and risk feature engine",
	Long: `EquityPulse computes daily return, volatility and drawdown features for
every tracked security, benchmark returns, and the portfolio roll-up with
alpha against the market, growth and risk-free benchmarks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "config file path")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
