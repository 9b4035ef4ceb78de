package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chanscan/chanscan/internal/chanlun"
	"github.com/chanscan/chanscan/internal/market"
)

var (
	analyzeDays int
	analyzeJSON bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze CODE",
	Short: "Run a Chan-Lun decomposition",
	Long: `Fetch daily bars for one code and run the full Chan-Lun
decomposition: fractals, strokes, central pivots, buy/sell signals, trend,
divergence and the 0-100 composite score.

Examples:
  chanscan analyze 600519
  chanscan analyze 600519 --days 250 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().IntVar(&analyzeDays, "days", 120, "number of trading days to analyze")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "JSON output")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	mgr, err := buildManager()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	code := args[0]
	bars, source, err := mgr.GetDailyData(ctx, code, analyzeDays)
	if err != nil {
		return fmt.Errorf("fetch daily bars: %w", err)
	}

	result := chanlun.Analyze(bars)

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s (%d bars from %s)\n", code, len(bars), source)
	fmt.Printf("  %s\n", result.Summary)
	fmt.Printf("  score: %.0f  trend: %s\n", result.Score, result.Trend)
	if result.Divergence.HasDivergence {
		fmt.Printf("  divergence: %s (delta %.2f)\n", result.Divergence.Type, result.Divergence.StrengthDelta)
	}
	for _, s := range result.Signals {
		fmt.Printf("  %s  %s  %.2f  conf %.1f  %s\n",
			s.Date.Format(market.DateLayout), s.Class, s.Price, s.Confidence, s.Reason)
	}
	for _, warn := range result.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warn)
	}
	return nil
}
