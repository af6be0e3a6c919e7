package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-sentinel/internal/config"
	"github.com/miradorstack/mirador-sentinel/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the feedback ledger",
}

var ledgerStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise recorded feedback and the retraining contamination hint",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			path = cfg.Ledger.Path
		}

		stats, err := ledger.ReadStats(path)
		if err != nil {
			return err
		}
		printStats(cmd, path, stats)
		return nil
	},
}

func init() {
	ledgerStatsCmd.Flags().String("path", "", "Ledger file (defaults to ledger.path from config)")
	ledgerStatsCmd.Flags().String("config", "", "Path to configuration file")
	ledgerCmd.AddCommand(ledgerStatsCmd)
	rootCmd.AddCommand(ledgerCmd)
}

func printStats(cmd *cobra.Command, path string, stats ledger.Stats) {
	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(out, "\n%s\n", cyan("=== Feedback Ledger ==="))
	fmt.Fprintf(out, "  File:               %s\n", path)
	if stats.Total == 0 {
		fmt.Fprintf(out, "  %s\n\n", yellow("No feedback recorded yet"))
		return
	}

	fmt.Fprintf(out, "  Rows:               %d\n", stats.Total)
	fmt.Fprintf(out, "  Confirmed (TRUE):   %s\n", green(stats.Confirmed))
	fmt.Fprintf(out, "  Rejected (FALSE):   %s\n", red(stats.Rejected))
	fmt.Fprintf(out, "  Predicted anomaly:  %d\n", stats.PredictedAnomalies)
	fmt.Fprintf(out, "  False-alarm rate:   %.1f%%\n", stats.FalseRate()*100)

	hint := fmt.Sprintf("%.3f", stats.Contamination())
	if stats.Total < ledger.MinFeedbackRows {
		hint += yellow(" (too few rows, base value)")
	}
	fmt.Fprintf(out, "  Contamination hint: %s\n\n", hint)
}
