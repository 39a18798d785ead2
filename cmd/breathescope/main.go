// Package main provides the breathescope CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "breathescope",
		Short: "Personalized air pollution health scoring",
		Long: `Breathescope combines live air quality data with your health profile to
compute a personalized health score, recommendations, and trends.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newScoreCmd(),
		newTrendCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
