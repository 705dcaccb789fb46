package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/apmkit/pkg/log"
)

var (
	logLevel  string
	logFormat string

	configPath string

	dataPath     string
	responseName string
	categorical  []string
	dropColumns  []string
	corrCutoff   float64

	dbPath string

	simRows  int
	simNoise float64
	simSeed  uint64
	simOut   string

	rootCmd = &cobra.Command{
		Use:          "apm",
		Short:        "Tune, evaluate and compare regression models",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return log.SetupLogger(os.Stderr, logLevel, logFormat)
		},
	}

	// --- Modelling ---
	tuneCmd = &cobra.Command{
		Use:   "tune",
		Short: "Run an experiment file: tune every model, score it on the test set and save the results",
		RunE:  runTune, // cmd_tune.go
	}

	// --- Exploration ---
	exploreCmd = &cobra.Command{
		Use:   "explore",
		Short: "Summarise a CSV file: distributions, skewness, missing values, near-zero variance and correlations",
		RunE:  runExplore, // cmd_explore.go
	}

	// --- Result database ---
	runsCmd = &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored tuning runs",
	}
	runsListCmd = &cobra.Command{
		Use:   "list",
		Short: "List stored runs",
		RunE:  runRunsList, // cmd_runs.go
	}
	runsShowCmd = &cobra.Command{
		Use:   "show [run id]",
		Short: "Show the resampling table of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsShow, // cmd_runs.go
	}

	// --- Data ---
	datasetsCmd = &cobra.Command{
		Use:   "datasets",
		Short: "List the registered benchmark datasets",
		RunE:  runDatasets, // cmd_data.go
	}
	simulateCmd = &cobra.Command{
		Use:   "simulate",
		Short: "Write Friedman #1 simulated data to a CSV file",
		RunE:  runSimulate, // cmd_data.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "log format (console, json)")

	tuneCmd.Flags().StringVarP(&configPath, "config", "c", "experiment.yaml", "experiment file")
	rootCmd.AddCommand(tuneCmd)

	exploreCmd.Flags().StringVar(&dataPath, "data", "", "CSV file to summarise")
	exploreCmd.Flags().StringVar(&responseName, "response", "", "response column (default: last column)")
	exploreCmd.Flags().StringSliceVar(&categorical, "categorical", nil, "columns to read as categorical")
	exploreCmd.Flags().StringSliceVar(&dropColumns, "drop", nil, "columns to ignore")
	exploreCmd.Flags().Float64Var(&corrCutoff, "cutoff", 0.75, "absolute correlation cutoff for the filter preview")
	_ = exploreCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(exploreCmd)

	runsCmd.PersistentFlags().StringVar(&dbPath, "db", "results.db", "result database")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)

	rootCmd.AddCommand(datasetsCmd)

	simulateCmd.Flags().IntVar(&simRows, "n", 200, "number of rows")
	simulateCmd.Flags().Float64Var(&simNoise, "sd", 1, "noise standard deviation")
	simulateCmd.Flags().Uint64Var(&simSeed, "seed", 1, "random seed")
	simulateCmd.Flags().StringVarP(&simOut, "out", "o", "friedman1.csv", "output file (- for stdout)")
	rootCmd.AddCommand(simulateCmd)
}
