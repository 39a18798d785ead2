package score

import (
	"fmt"
	"math"
)

// Weights configures the relative contribution of each assessment dimension
// to the overall score. The dimensions map onto component scores in order:
// air quality -> respiratory, user vulnerability -> cardiovascular,
// exposure time -> immune, activity level -> activity impact.
type Weights struct {
	AirQuality        float64 `yaml:"air_quality" json:"air_quality"`
	UserVulnerability float64 `yaml:"user_vulnerability" json:"user_vulnerability"`
	ExposureTime      float64 `yaml:"exposure_time" json:"exposure_time"`
	ActivityLevel     float64 `yaml:"activity_level" json:"activity_level"`
}

// DefaultWeights returns the reference weight set.
func DefaultWeights() Weights {
	return Weights{
		AirQuality:        0.35,
		UserVulnerability: 0.30,
		ExposureTime:      0.20,
		ActivityLevel:     0.15,
	}
}

const weightSumTolerance = 1e-6

// Validate checks that all weights are non-negative and sum to 1.
// Callers must validate weights when configuration is loaded; Compute
// re-checks and fails rather than silently normalizing.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"air_quality":        w.AirQuality,
		"user_vulnerability": w.UserVulnerability,
		"exposure_time":      w.ExposureTime,
		"activity_level":     w.ActivityLevel,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s is negative (%.4f)", ErrInvalidWeights, name, v)
		}
	}
	sum := w.AirQuality + w.UserVulnerability + w.ExposureTime + w.ActivityLevel
	if math.Abs(sum-1) > weightSumTolerance {
		return fmt.Errorf("%w: weights sum to %.6f, want 1.0", ErrInvalidWeights, sum)
	}
	return nil
}

// Overall combines the four component scores using these weights.
func (w Weights) Overall(c ComponentScores) float64 {
	return w.AirQuality*c.Respiratory +
		w.UserVulnerability*c.Cardiovascular +
		w.ExposureTime*c.Immune +
		w.ActivityLevel*c.ActivityImpact
}
