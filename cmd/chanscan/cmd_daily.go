package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/chanscan/chanscan/internal/market"
)

var (
	dailyDays int
	dailyJSON bool
)

var dailyCmd = &cobra.Command{
	Use:   "daily CODE",
	Short: "Fetch daily bar history",
	Long: `Fetch canonical daily bars for one code: open/high/low/close, volume
in shares, amount in yuan and pct_chg, ordered ascending by date.

Examples:
  chanscan daily 600519
  chanscan daily 600519 --days 250 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runDaily,
}

func init() {
	rootCmd.AddCommand(dailyCmd)
	dailyCmd.Flags().IntVar(&dailyDays, "days", 120, "number of trading days")
	dailyCmd.Flags().BoolVar(&dailyJSON, "json", false, "JSON output")
}

func runDaily(cmd *cobra.Command, args []string) error {
	mgr, err := buildManager()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	bars, source, err := mgr.GetDailyData(ctx, args[0], dailyDays)
	if err != nil {
		return fmt.Errorf("fetch daily bars: %w", err)
	}

	if dailyJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Source string        `json:"source"`
			Bars   market.Series `json:"bars"`
		}{source, bars})
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\tPCT%")
	for _, b := range bars {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%+.2f\n",
			b.Date.Format(market.DateLayout), b.Open, b.High, b.Low, b.Close, b.Volume, b.PctChg)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d bars from %s\n", len(bars), source)
	return nil
}
