// Package score implements the Breathescope health scoring model.
// It turns air-quality exposure and a user's health profile into an
// explainable, multi-dimensional score snapshot.
package score

import "time"

// ExposureSample is a single air-quality reading. Immutable once created.
type ExposureSample struct {
	Timestamp  time.Time          `json:"timestamp"`
	AQI        float64            `json:"aqi"` // 0-500
	PM25       float64            `json:"pm25"`
	Latitude   float64            `json:"latitude"`
	Longitude  float64            `json:"longitude"`
	Pollutants map[string]float64 `json:"pollutants,omitempty"` // concentration by pollutant code
	Source     string             `json:"source,omitempty"`
}

// AgeBand is a coarse age classification used for vulnerability scoring.
type AgeBand string

const (
	AgeChild  AgeBand = "child"
	AgeAdult  AgeBand = "adult"
	AgeSenior AgeBand = "senior"
)

// ActivityLevel describes how much time the user spends exerting outdoors.
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "sedentary"
	ActivityModerate  ActivityLevel = "moderate"
	ActivityActive    ActivityLevel = "active"
)

// HealthProfile holds the user's vulnerability attributes.
// Immutable per assessment.
type HealthProfile struct {
	AgeBand                     AgeBand       `json:"age_band"`
	HasRespiratoryConditions    bool          `json:"has_respiratory_conditions"`
	HasCardiovascularConditions bool          `json:"has_cardiovascular_conditions"`
	IsSmoker                    bool          `json:"is_smoker"`
	ActivityLevel               ActivityLevel `json:"activity_level"`
}

// User identifies the person being assessed. Home coordinates are the
// fallback position when no live location or sensor sample is available.
type User struct {
	ID            string  `json:"id"`
	DisplayName   string  `json:"display_name,omitempty"`
	HomeLatitude  float64 `json:"home_latitude,omitempty"`
	HomeLongitude float64 `json:"home_longitude,omitempty"`
}

// RiskCategory is the coarse four-level classification derived from the
// overall score.
type RiskCategory string

const (
	RiskLow      RiskCategory = "low"
	RiskMedium   RiskCategory = "medium"
	RiskHigh     RiskCategory = "high"
	RiskCritical RiskCategory = "critical"
)

// Priority classifies how strongly a recommendation should be surfaced.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Recommendation is an actionable piece of guidance attached to a snapshot.
// Completion is recorded by appending a timestamped marker to Actions rather
// than deleting anything.
type Recommendation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        string    `json:"type"`     // respiratory, activity, lifestyle
	Category    string    `json:"category"` // finer grouping within a type
	Priority    Priority  `json:"priority"`
	IsUrgent    bool      `json:"is_urgent"` // immediate surfacing regardless of priority
	Actions     []string  `json:"actions"`
	CreatedAt   time.Time `json:"created_at"`
}

// ComponentScores holds the four named sub-scores, each 0-100.
type ComponentScores struct {
	Respiratory    float64 `json:"respiratory"`
	Cardiovascular float64 `json:"cardiovascular"`
	Immune         float64 `json:"immune"`
	ActivityImpact float64 `json:"activity_impact"`
}

// Snapshot is one computed health-score result at a point in time.
// Immutable after creation except for Recommendations, which the
// recommendation manager replaces copy-on-write.
type Snapshot struct {
	UserID              string             `json:"user_id"`
	Timestamp           time.Time          `json:"timestamp"`
	Overall             float64            `json:"overall_score"` // 0-100
	Components          ComponentScores    `json:"components"`
	RiskCategory        RiskCategory       `json:"risk_category"`
	RiskLevel           float64            `json:"risk_level"` // 0.0-1.0, monotonic with RiskCategory
	ContributingFactors map[string]float64 `json:"contributing_factors"`
	Recommendations     []Recommendation   `json:"recommendations"`
}

// CategoryFromScore maps an overall score to its risk category.
// The mapping is a pure, monotonic step function.
func CategoryFromScore(overall float64) RiskCategory {
	switch {
	case overall >= 65:
		return RiskLow
	case overall >= 50:
		return RiskMedium
	case overall >= 35:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskLevelFromScore maps an overall score to the continuous risk axis.
// The mapping is the linear complement of the score, which keeps it
// monotonic with CategoryFromScore across category boundaries.
func RiskLevelFromScore(overall float64) float64 {
	return clamp(1-overall/100, 0, 1)
}

// Clone returns a deep copy of the snapshot. Readers outside the engine
// only ever see clones, never the engine's own copy.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	if s.ContributingFactors != nil {
		out.ContributingFactors = make(map[string]float64, len(s.ContributingFactors))
		for k, v := range s.ContributingFactors {
			out.ContributingFactors[k] = v
		}
	}
	if s.Recommendations != nil {
		out.Recommendations = make([]Recommendation, len(s.Recommendations))
		for i, r := range s.Recommendations {
			out.Recommendations[i] = r.clone()
		}
	}
	return &out
}

func (r Recommendation) clone() Recommendation {
	out := r
	if r.Actions != nil {
		out.Actions = append([]string(nil), r.Actions...)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
