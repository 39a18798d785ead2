// Package notify decides whether a score change warrants an alert and at
// what severity. It only returns decisions; delivery belongs to an external
// collaborator. Evaluation never fails: malformed input degrades to minimal
// severity with a logged anomaly.
package notify

import (
	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/pkg/recommend"
	"github.com/breathescope/breathescope/pkg/score"
)

// EventType identifies what kind of change triggered an alert.
type EventType string

const (
	ScoreDropAlert            EventType = "score_drop"
	RiskCategoryChangeAlert   EventType = "risk_category_change"
	UrgentRecommendationAlert EventType = "urgent_recommendation"
)

// Severity classifies how strongly an alert should be surfaced.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
	SeverityMinimal  Severity = "minimal"
)

// scoreDropThreshold is the absolute point drop that triggers an alert.
const scoreDropThreshold = 20.0

// TriggerEvent is one alert decision handed to the delivery collaborator.
type TriggerEvent struct {
	Type           EventType             `json:"type"`
	Severity       Severity              `json:"severity"`
	Snapshot       *score.Snapshot       `json:"snapshot"`
	ChangeValue    float64               `json:"change_value,omitempty"` // signed score delta
	Recommendation *score.Recommendation `json:"recommendation,omitempty"`
}

// Trigger evaluates snapshot transitions. The zero value is not usable;
// construct with New.
type Trigger struct {
	log zerolog.Logger
}

// New creates a Trigger that reports anomalies to the given logger.
func New(log zerolog.Logger) *Trigger {
	return &Trigger{log: log}
}

// Evaluate compares the current snapshot against the previous one and
// returns the alerts the transition warrants. A nil previous snapshot
// means first-ever computation: nothing to compare against, no alerts.
func (t *Trigger) Evaluate(previous, current *score.Snapshot) []TriggerEvent {
	if current == nil {
		t.log.Warn().Msg("notification trigger evaluated with nil current snapshot")
		return nil
	}
	if previous == nil {
		return nil
	}

	var events []TriggerEvent
	delta := current.Overall - previous.Overall

	if previous.Overall-current.Overall > scoreDropThreshold {
		events = append(events, TriggerEvent{
			Type:        ScoreDropAlert,
			Severity:    t.severityForScore(current, delta),
			Snapshot:    current,
			ChangeValue: delta,
		})
	}

	if previous.RiskCategory != current.RiskCategory {
		// Both improvements and regressions are reported; severity
		// classification distinguishes them downstream.
		events = append(events, TriggerEvent{
			Type:        RiskCategoryChangeAlert,
			Severity:    t.severityForScore(current, delta),
			Snapshot:    current,
			ChangeValue: delta,
		})
	}

	if urgent := recommend.Urgent(current); len(urgent) > 0 {
		// Only the first urgent recommendation is surfaced per cycle to
		// avoid alert flooding; the rest stay queryable.
		first := urgent[0]
		events = append(events, TriggerEvent{
			Type:           UrgentRecommendationAlert,
			Severity:       t.severityForScore(current, delta),
			Snapshot:       current,
			Recommendation: &first,
		})
	}

	return events
}

// severityForScore maps a score level and its change onto fixed severity
// bands. Out-of-range values degrade to minimal with a logged anomaly
// rather than failing the evaluation.
func (t *Trigger) severityForScore(current *score.Snapshot, change float64) Severity {
	s := current.Overall
	if s < 0 || s > 100 {
		t.log.Warn().Float64("overall", s).Str("user", current.UserID).
			Msg("overall score out of range, degrading alert severity to minimal")
		return SeverityMinimal
	}

	switch {
	case s < 40 || change <= -scoreDropThreshold:
		return SeverityHigh
	case s < 60 || change <= -10:
		return SeverityModerate
	case s > 80 || change >= 10:
		// Celebratory: improvements are still surfaced, gently.
		return SeverityLow
	default:
		return SeverityMinimal
	}
}

// SeverityFromAQI maps a raw AQI onto the fixed alert bands used for
// exposure-based triggers.
func SeverityFromAQI(aqi float64) Severity {
	switch {
	case aqi >= 300:
		return SeverityCritical
	case aqi >= 150:
		return SeverityHigh
	case aqi >= 100:
		return SeverityModerate
	case aqi >= 50:
		return SeverityLow
	default:
		return SeverityMinimal
	}
}
