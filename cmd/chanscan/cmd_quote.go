package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var quoteJSON bool

var quoteCmd = &cobra.Command{
	Use:   "quote CODE [CODE...]",
	Short: "Fetch realtime quotes",
	Long: `Fetch realtime snapshots for one or more 6-digit A-share codes.
Multiple codes go through the batch path of a batch-capable source when one
is available.

Examples:
  chanscan quote 600519
  chanscan quote 600519 000001 300750 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().BoolVar(&quoteJSON, "json", false, "JSON output")
}

func runQuote(cmd *cobra.Command, args []string) error {
	mgr, err := buildManager()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	quotes, source, err := mgr.GetBatchRealtimeQuotes(ctx, args)
	if err != nil {
		return fmt.Errorf("fetch quotes: %w", err)
	}

	if quoteJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(quotes)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tPRICE\tCHG%\tVOLUME\tSOURCE")
	for _, code := range args {
		q := quotes[code]
		if q == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%s\n", code, source)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%+.2f\t%d\t%s\n", q.Code, q.Name, q.Price, q.ChangePct, q.Volume, source)
	}
	return w.Flush()
}
