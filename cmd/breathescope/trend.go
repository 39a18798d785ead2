package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/breathescope/breathescope/pkg/config"
	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/trend"
)

func newTrendCmd() *cobra.Command {
	var (
		configPath string
		days       int
		outputFmt  string
		prune      bool
	)

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Analyze your score history",
		Long:  `Reads snapshots saved by previous score runs and reports direction, volatility, and improvement rate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrend(trendOpts{
				configPath: configPath,
				days:       days,
				outputFmt:  outputFmt,
				prune:      prune,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: search for .breathescope/config.yaml)")
	cmd.Flags().IntVar(&days, "days", 30, "History window in days")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete snapshots older than the window")

	return cmd
}

type trendOpts struct {
	configPath string
	days       int
	outputFmt  string
	prune      bool
}

func runTrend(opts trendOpts) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	user, _ := cfg.Profile.User()
	dir := config.SnapshotDir(user.ID)

	cutoff := time.Now().UTC().AddDate(0, 0, -opts.days)
	if opts.prune {
		removed, err := pruneLocalHistory(dir, cutoff)
		if err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Pruned %d snapshots older than %d days\n", removed, opts.days)
	}

	history, err := loadLocalHistory(dir)
	if err != nil {
		return fmt.Errorf("loading snapshot history: %w", err)
	}
	history = sinceCutoff(history, cutoff)
	if len(history) == 0 {
		return fmt.Errorf("no snapshots in the last %d days; run 'breathescope score' first", opts.days)
	}

	rep := trend.Analyze(history)

	switch opts.outputFmt {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "text", "":
		printTrend(rep, len(history), opts.days)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", opts.outputFmt)
	}
}

func sinceCutoff(history []score.Snapshot, cutoff time.Time) []score.Snapshot {
	out := history[:0]
	for _, s := range history {
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

func printTrend(rep trend.Report, samples, days int) {
	fmt.Printf("Trend over the last %d days (%d snapshots)\n\n", days, samples)
	if !rep.SufficientData {
		fmt.Printf("  Not enough history for a direction yet (have %d, need more runs).\n", rep.SampleCount)
	} else {
		fmt.Printf("  Direction:    %s\n", rep.Direction)
		fmt.Printf("  Rate:         %+.1f points/week\n", rep.ImprovementRate)
	}
	fmt.Printf("  Score range:  %.1f to %.1f\n", rep.MinScore, rep.MaxScore)
	fmt.Printf("  Volatility:   %.1f\n", rep.Volatility)
}
