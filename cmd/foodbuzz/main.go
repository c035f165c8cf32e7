package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "foodbuzz",
		Short:         "Deduplicate restaurant mentions and track weekly buzz movers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(dedupeCmd())
	root.AddCommand(snapshotCmd())
	root.AddCommand(moversCmd())
	root.AddCommand(runCmd())
	root.AddCommand(forecastCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(daemonCmd())

	return root
}

// scoringFlags are the dedupe parameters that may override the config.
type scoringFlags struct {
	minSimilarity int
	halfLife      int
}

func (f *scoringFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.minSimilarity, "min-similarity", -1, "name similarity threshold 0-100 (default: from config)")
	cmd.Flags().IntVar(&f.halfLife, "half-life", -1, "trend decay half-life in days (default: from config)")
}

func dedupeCmd() *cobra.Command {
	var flags scoringFlags

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Cluster raw mentions into the canonical entity table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDedupe(cmd.Context(), flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Save the canonical table as this ISO week's snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context())
		},
	}
}

func moversCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "movers",
		Short: "Rank score changes between the two latest snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMovers(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runCmd() *cobra.Command {
	var (
		flags      scoringFlags
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run dedupe, snapshot and movers once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), flags, jsonOutput)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the run summary as JSON")
	return cmd
}

func forecastCmd() *cobra.Command {
	var (
		weeks      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Show weekly mention volume and a moving-average projection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runForecast(cmd.Context(), weeks, jsonOutput)
		},
	}

	cmd.Flags().IntVar(&weeks, "weeks", 8, "recent weeks to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func validateCmd() *cobra.Command {
	var enriched bool

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a canonical entity table for data quality problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			var enrichedFlag *bool
			if cmd.Flags().Changed("enriched") {
				enrichedFlag = &enriched
			}
			return runValidate(path, enrichedFlag)
		},
	}

	cmd.Flags().BoolVar(&enriched, "enriched", false, "require enrichment columns (default: true for the enhanced table)")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func daemonCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline on a schedule and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
