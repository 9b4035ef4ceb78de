package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var sourcesProbe bool

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources in failover order",
	Long: `List the registered upstream sources in the priority order the
failover manager consults them. With --probe each source is asked for one
well-known quote to check reachability.

Examples:
  chanscan sources
  chanscan sources --probe`,
	RunE: runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.Flags().BoolVar(&sourcesProbe, "probe", false, "fetch a test quote through the failover chain")
}

func runSources(cmd *cobra.Command, args []string) error {
	mgr, err := buildManager()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tSOURCE\tCOOLING")
	for i, name := range mgr.Sources() {
		fmt.Fprintf(w, "%d\t%s\t%v\n", i+1, name, mgr.CoolingDown(name))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !sourcesProbe {
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	// 600519 trades every session; any healthy source can answer it.
	start := time.Now()
	q, source, err := mgr.GetRealtimeQuote(ctx, "600519")
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	fmt.Printf("probe ok: %s %.2f via %s in %s\n", q.Code, q.Price, source, time.Since(start).Round(time.Millisecond))
	return nil
}
