package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/breathescope/breathescope/internal/airquality"
	"github.com/breathescope/breathescope/pkg/config"
	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/surface"
	"github.com/breathescope/breathescope/pkg/trend"
)

func newScoreCmd() *cobra.Command {
	var (
		configPath string
		apiURL     string
		apiKey     string
		inputPath  string
		lat        float64
		lon        float64
		historical bool
		outputFmt  string
		noSave     bool
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute your current health score",
		Long:  `Fetches live air quality for your location, scores it against your health profile, and renders the result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), scoreOpts{
				configPath: configPath,
				apiURL:     apiURL,
				apiKey:     apiKey,
				inputPath:  inputPath,
				lat:        lat,
				lon:        lon,
				historical: historical,
				outputFmt:  outputFmt,
				noSave:     noSave,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: search for .breathescope/config.yaml)")
	cmd.Flags().StringVar(&apiURL, "api-url", "https://api.openweathermap.org/data/2.5", "Pollution API base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Pollution API key (default: $POLLUTION_API_KEY)")
	cmd.Flags().StringVar(&inputPath, "input", "", "Score an exposure JSON file instead of fetching live data")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude (default: profile location)")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude (default: profile location)")
	cmd.Flags().BoolVar(&historical, "historical", true, "Include recent exposure history in the score")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not record the snapshot for trend analysis")

	return cmd
}

type scoreOpts struct {
	configPath string
	apiURL     string
	apiKey     string
	inputPath  string
	lat        float64
	lon        float64
	historical bool
	outputFmt  string
	noSave     bool
}

func runScore(ctx context.Context, opts scoreOpts) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	user, profile := cfg.Profile.User()

	var (
		current *score.ExposureSample
		history []score.ExposureSample
	)
	if opts.inputPath != "" {
		current, history, err = loadExposureFile(opts.inputPath)
		if err != nil {
			return fmt.Errorf("reading exposure file: %w", err)
		}
	} else {
		lat, lon := opts.lat, opts.lon
		if lat == 0 && lon == 0 {
			lat, lon = user.HomeLatitude, user.HomeLongitude
		}
		if lat == 0 && lon == 0 {
			return fmt.Errorf("no location: pass --lat/--lon or set latitude/longitude in the profile config")
		}

		apiKey := firstNonEmpty(opts.apiKey, os.Getenv("POLLUTION_API_KEY"))
		if apiKey == "" {
			return fmt.Errorf("no API key: pass --api-key or set POLLUTION_API_KEY")
		}

		client := airquality.NewClient(opts.apiURL, apiKey)

		fmt.Fprintf(os.Stderr, "Fetching air quality for %.4f, %.4f...\n", lat, lon)
		current, err = client.Current(ctx, lat, lon)
		if err != nil {
			return fmt.Errorf("fetching current air quality: %w", err)
		}

		if opts.historical && cfg.Scoring.HistoricalHours > 0 {
			history, err = client.Historical(ctx, lat, lon, cfg.Scoring.HistoricalHours)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  Warning: historical fetch failed: %v\n", err)
				fmt.Fprintf(os.Stderr, "  Scoring on the current reading only.\n")
				history = nil
			}
		}
	}

	snap, err := score.Compute(score.ComputeInput{
		User:       user,
		Profile:    profile,
		Current:    current,
		Historical: history,
		Weights:    cfg.Scoring.Weights,
	})
	if err != nil {
		return fmt.Errorf("computing score: %w", err)
	}

	// Local snapshots feed the trend view across runs.
	past, _ := loadLocalHistory(config.SnapshotDir(user.ID))
	if !opts.noSave {
		if err := saveLocalSnapshot(config.SnapshotDir(user.ID), snap); err != nil {
			fmt.Fprintf(os.Stderr, "  Warning: could not save snapshot: %v\n", err)
		}
	}

	view := &surface.View{Snapshot: snap}
	if len(past) > 0 {
		rep := trend.Analyze(append(past, *snap))
		view.Trend = &rep
	}

	return render(opts.outputFmt, view)
}

func render(format string, view *surface.View) error {
	var r surface.Renderer
	switch format {
	case "json":
		r = &surface.JSONRenderer{}
	case "text", "":
		r = &surface.TerminalRenderer{}
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}
	return r.Render(os.Stdout, view)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting working directory: %w", err)
		}
		path = config.FindConfigFile(cwd)
	}
	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// loadExposureFile reads exposure data for offline scoring. The file is
// either {"current": {...}, "historical": [...]} or a bare sample.
func loadExposureFile(path string) (*score.ExposureSample, []score.ExposureSample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var doc struct {
		Current    *score.ExposureSample  `json:"current"`
		Historical []score.ExposureSample `json:"historical"`
	}
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Current != nil {
		return doc.Current, doc.Historical, nil
	}

	var sample score.ExposureSample
	if err := json.Unmarshal(raw, &sample); err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if sample.AQI == 0 && sample.PM25 == 0 {
		return nil, nil, fmt.Errorf("%s has no exposure readings", path)
	}
	return &sample, nil, nil
}

// loadLocalHistory reads saved snapshots sorted by timestamp ascending.
// Unreadable files are skipped.
func loadLocalHistory(dir string) ([]score.Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []score.Snapshot
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		var snap score.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func saveLocalSnapshot(dir string, snap *score.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	name := snap.Timestamp.UTC().Format("20060102T150405Z") + ".json"
	return os.WriteFile(filepath.Join(dir, name), raw, 0o644)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// pruneLocalHistory drops snapshots older than the cutoff. Called by the
// trend command with --prune.
func pruneLocalHistory(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ts, err := time.Parse("20060102T150405Z", e.Name()[:len(e.Name())-len(".json")])
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
