package score

import (
	"fmt"
	"math"
	"time"
)

// ComputeInput carries everything the model needs for one assessment.
// User, Profile and at least one exposure source are required; the rest
// refine the result.
type ComputeInput struct {
	User             *User
	Profile          *HealthProfile
	Current          *ExposureSample
	Historical       []ExposureSample
	LocationPatterns map[string]float64 // e.g. outdoor time ratios by area
	Weights          Weights
	Now              time.Time // zero means time.Now().UTC()
}

// Compute produces a score snapshot from exposure and profile inputs.
// It is pure: no persistence, no logging. The engine owns side effects.
func Compute(in ComputeInput) (*Snapshot, error) {
	if in.User == nil {
		return nil, fmt.Errorf("%w: user", ErrMissingInput)
	}
	if in.Profile == nil {
		return nil, fmt.Errorf("%w: health profile", ErrMissingInput)
	}
	if in.Current == nil && len(in.Historical) == 0 {
		return nil, ErrDataUnavailable
	}
	if err := in.Weights.Validate(); err != nil {
		return nil, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	aqi, histMean, hours := effectiveExposure(in.Current, in.Historical)
	duration := durationFactor(hours)

	components := ComponentScores{
		Respiratory:    componentScore(aqi, respiratorySensitivity(in.Profile), duration),
		Cardiovascular: componentScore(aqi, cardiovascularSensitivity(in.Profile), duration),
		Immune:         componentScore(aqi, immuneSensitivity(in.Profile), duration),
		ActivityImpact: componentScore(aqi, activitySensitivity(in.Profile), duration),
	}

	overall := clamp(in.Weights.Overall(components), 0, 100)
	category := CategoryFromScore(overall)

	factors := map[string]float64{
		"aqi":            aqi,
		"exposure_hours": hours,
	}
	if in.Current != nil {
		factors["pm25"] = in.Current.PM25
	}
	if len(in.Historical) > 0 {
		factors["historical_mean_aqi"] = histMean
	}
	for k, v := range in.LocationPatterns {
		factors[k] = v
	}

	return &Snapshot{
		UserID:              in.User.ID,
		Timestamp:           now,
		Overall:             overall,
		Components:          components,
		RiskCategory:        category,
		RiskLevel:           RiskLevelFromScore(overall),
		ContributingFactors: factors,
		Recommendations:     buildRecommendations(aqi, in.Profile, category, now),
	}, nil
}

// effectiveExposure blends the current reading with recent history.
// With both present the current reading dominates (70/30); with only one
// source, that source is used alone. Exposure hours approximate one hour
// per historical sample, plus the current reading.
func effectiveExposure(current *ExposureSample, historical []ExposureSample) (aqi, histMean, hours float64) {
	if len(historical) > 0 {
		var sum float64
		for _, s := range historical {
			sum += s.AQI
		}
		histMean = sum / float64(len(historical))
		hours = float64(len(historical))
	}

	switch {
	case current != nil && len(historical) > 0:
		aqi = 0.7*current.AQI + 0.3*histMean
		hours++
	case current != nil:
		aqi = current.AQI
		hours = 1
	default:
		aqi = histMean
	}
	return aqi, histMean, hours
}

// basePenalty accrues super-linearly above the EPA band thresholds:
// nothing below AQI 50, then growing per-point coefficients at each
// band crossing.
func basePenalty(aqi float64) float64 {
	switch {
	case aqi <= 50:
		return 0
	case aqi <= 100:
		return (aqi - 50) * 0.3
	case aqi <= 150:
		return 15 + (aqi-100)*0.5
	case aqi <= 200:
		return 40 + (aqi-150)*0.7
	default:
		return 75 + (aqi-200)*0.9
	}
}

// durationFactor scales penalty by exposure time, capped at a 1.5x
// multiplier for a full day of sustained exposure.
func durationFactor(hours float64) float64 {
	return 1 + math.Min(hours, 24)/24*0.5
}

func componentScore(aqi, sensitivity, duration float64) float64 {
	return clamp(100-basePenalty(aqi)*sensitivity*duration, 0, 100)
}

// Sensitivity multipliers follow the original condition adjustments:
// respiratory conditions weigh heaviest on the respiratory axis, smoking
// affects both respiratory and cardiovascular axes, and age extremes
// raise immune vulnerability.

func respiratorySensitivity(p *HealthProfile) float64 {
	s := 1.0
	if p.HasRespiratoryConditions {
		s *= 1.3
	}
	if p.IsSmoker {
		s *= 1.15
	}
	return s
}

func cardiovascularSensitivity(p *HealthProfile) float64 {
	s := 0.9
	if p.HasCardiovascularConditions {
		s *= 1.25
	}
	if p.IsSmoker {
		s *= 1.1
	}
	return s
}

func immuneSensitivity(p *HealthProfile) float64 {
	s := 0.8
	if p.AgeBand == AgeChild || p.AgeBand == AgeSenior {
		s *= 1.2
	}
	return s
}

func activitySensitivity(p *HealthProfile) float64 {
	s := 0.85
	switch p.ActivityLevel {
	case ActivitySedentary:
		s *= 0.7
	case ActivityActive:
		s *= 1.3
	}
	return s
}
