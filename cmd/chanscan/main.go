// chanscan is the CLI over the A-share data layer and the Chan-Lun engine:
// realtime quotes, daily history and full decompositions, all served through
// the multi-source failover manager.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chanscan/chanscan/internal/config"
	"github.com/chanscan/chanscan/internal/fetch"
	"github.com/chanscan/chanscan/internal/registry"
)

var (
	flagConfig  string
	flagVerbose bool
	flagTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chanscan",
	Short: "A-share market data with Chan-Lun analysis",
	Long: `chanscan fetches Chinese A-share quotes and daily bars through a
priority-ordered chain of upstream sources with automatic failover, and runs
Chan-Lun decompositions (fractals, strokes, central pivots, buy/sell signals)
over the result.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		if flagVerbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config YAML (optional)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 60*time.Second, "overall request timeout")
}

// buildManager loads configuration and assembles the failover manager.
func buildManager() (*fetch.Manager, error) {
	config.LoadDotenv()
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	return registry.BuildManager(cfg), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
