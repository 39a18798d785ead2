// Package config handles loading and managing Breathescope configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/breathescope/breathescope/pkg/score"
)

// Config is the top-level configuration for Breathescope.
type Config struct {
	Scoring    ScoringConfig    `yaml:"scoring"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Profile    ProfileConfig    `yaml:"profile"`
}

// ScoringConfig controls scoring behavior.
type ScoringConfig struct {
	Weights         score.Weights `yaml:"weights"`
	HistoricalHours int           `yaml:"historical_hours"`
}

// MonitoringConfig controls continuous monitoring behavior.
type MonitoringConfig struct {
	MinRecomputeIntervalMinutes int `yaml:"min_recompute_interval_minutes"`
	ComputeTimeoutSeconds       int `yaml:"compute_timeout_seconds"`
}

// MinRecomputeInterval returns the monitoring gate as a duration.
func (m MonitoringConfig) MinRecomputeInterval() time.Duration {
	return time.Duration(m.MinRecomputeIntervalMinutes) * time.Minute
}

// ComputeTimeout returns the per-assessment timeout as a duration.
func (m MonitoringConfig) ComputeTimeout() time.Duration {
	return time.Duration(m.ComputeTimeoutSeconds) * time.Second
}

// ProfileConfig is the locally configured user profile, used by the CLI
// when no server-side profile is involved.
type ProfileConfig struct {
	UserID                      string  `yaml:"user_id"`
	DisplayName                 string  `yaml:"display_name"`
	AgeBand                     string  `yaml:"age_band"`
	HasRespiratoryConditions    bool    `yaml:"has_respiratory_conditions"`
	HasCardiovascularConditions bool    `yaml:"has_cardiovascular_conditions"`
	IsSmoker                    bool    `yaml:"is_smoker"`
	ActivityLevel               string  `yaml:"activity_level"`
	Latitude                    float64 `yaml:"latitude"`
	Longitude                   float64 `yaml:"longitude"`
}

// User converts the configured profile to scoring model inputs.
func (p ProfileConfig) User() (*score.User, *score.HealthProfile) {
	user := &score.User{
		ID:            p.UserID,
		DisplayName:   p.DisplayName,
		HomeLatitude:  p.Latitude,
		HomeLongitude: p.Longitude,
	}
	if user.ID == "" {
		user.ID = "local"
	}
	profile := &score.HealthProfile{
		AgeBand:                     score.AgeBand(strings.ToLower(p.AgeBand)),
		HasRespiratoryConditions:    p.HasRespiratoryConditions,
		HasCardiovascularConditions: p.HasCardiovascularConditions,
		IsSmoker:                    p.IsSmoker,
		ActivityLevel:               score.ActivityLevel(strings.ToLower(p.ActivityLevel)),
	}
	if profile.AgeBand == "" {
		profile.AgeBand = score.AgeAdult
	}
	if profile.ActivityLevel == "" {
		profile.ActivityLevel = score.ActivityModerate
	}
	return user, profile
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scoring: ScoringConfig{
			Weights:         score.DefaultWeights(),
			HistoricalHours: 24,
		},
		Monitoring: MonitoringConfig{
			MinRecomputeIntervalMinutes: 15,
			ComputeTimeoutSeconds:       15,
		},
	}
}

// Load reads a config file from the given path.
// If the file does not exist, it returns the default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values the engine would
// reject later.
func (c *Config) Validate() error {
	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring weights: %w", err)
	}
	if c.Scoring.HistoricalHours < 0 {
		return fmt.Errorf("historical_hours must not be negative")
	}
	if c.Monitoring.MinRecomputeIntervalMinutes < 0 {
		return fmt.Errorf("min_recompute_interval_minutes must not be negative")
	}
	switch strings.ToLower(c.Profile.AgeBand) {
	case "", string(score.AgeChild), string(score.AgeAdult), string(score.AgeSenior):
	default:
		return fmt.Errorf("unknown age_band %q", c.Profile.AgeBand)
	}
	switch strings.ToLower(c.Profile.ActivityLevel) {
	case "", string(score.ActivitySedentary), string(score.ActivityModerate), string(score.ActivityActive):
	default:
		return fmt.Errorf("unknown activity_level %q", c.Profile.ActivityLevel)
	}
	return nil
}

// FindConfigFile looks for .breathescope/config.yaml in the given
// directory, its parents, and finally the user's home directory,
// returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, ".breathescope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".breathescope", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// CacheDir returns the local cache directory for a given user.
// Uses ~/.cache/breathescope/<user>/ to keep snapshots out of the cwd.
func CacheDir(userID string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "breathescope", userSlug(userID))
}

// SnapshotDir returns the local snapshot storage directory for a user.
func SnapshotDir(userID string) string {
	return filepath.Join(CacheDir(userID), "snapshots")
}

// userSlug creates a filesystem-safe identifier from a user ID.
func userSlug(userID string) string {
	if userID == "" {
		return "local"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, userID)
}
