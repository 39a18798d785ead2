// Package trend derives direction, volatility and improvement statistics
// from a time-ordered health score history. All functions are pure and
// deterministic; callers must sort snapshots by timestamp ascending
// before invoking.
package trend

import (
	"math"

	"github.com/breathescope/breathescope/pkg/score"
)

// Direction classifies how a score history is moving.
type Direction string

const (
	Improving Direction = "improving"
	Declining Direction = "declining"
	Stable    Direction = "stable"
)

// directionThreshold is the minimum mean difference between the first and
// last third of the series before a history counts as moving.
const directionThreshold = 5.0

// DirectionOf compares the mean of the first third of the series with the
// mean of the last third. The second return value is false when fewer than
// 3 samples exist; the direction is then Stable by convention.
func DirectionOf(history []score.Snapshot) (Direction, bool) {
	if len(history) < 3 {
		return Stable, false
	}

	third := len(history) / 3
	first := mean(overallScores(history[:third]))
	last := mean(overallScores(history[len(history)-third:]))

	switch diff := last - first; {
	case diff > directionThreshold:
		return Improving, true
	case diff < -directionThreshold:
		return Declining, true
	default:
		return Stable, true
	}
}

// Volatility returns the coefficient of variation of the overall score
// series (stddev / mean * 100). Returns 0 when the mean is 0 or fewer
// than 2 samples exist.
func Volatility(history []score.Snapshot) float64 {
	if len(history) < 2 {
		return 0
	}
	scores := overallScores(history)
	m := mean(scores)
	if m == 0 {
		return 0
	}

	var sumSq float64
	for _, s := range scores {
		d := s - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq/float64(len(scores))) / m * 100
}

// ImprovementRate approximates points gained per week assuming roughly
// daily sampling: (last - first) / (count/7). The sampling cadence is not
// guaranteed, so callers must treat the rate as an approximation.
func ImprovementRate(history []score.Snapshot) float64 {
	if len(history) < 2 {
		return 0
	}
	first := history[0].Overall
	last := history[len(history)-1].Overall
	return (last - first) / (float64(len(history)) / 7)
}

// ScoreRange returns the minimum and maximum overall score in the history.
// Both are 0 for an empty history.
func ScoreRange(history []score.Snapshot) (min, max float64) {
	if len(history) == 0 {
		return 0, 0
	}
	min, max = history[0].Overall, history[0].Overall
	for _, s := range history[1:] {
		if s.Overall < min {
			min = s.Overall
		}
		if s.Overall > max {
			max = s.Overall
		}
	}
	return min, max
}

// Report bundles all trend statistics for one history window.
type Report struct {
	Direction       Direction `json:"direction"`
	SufficientData  bool      `json:"sufficient_data"`
	Volatility      float64   `json:"volatility"`
	ImprovementRate float64   `json:"improvement_rate"` // approximate points per week
	MinScore        float64   `json:"min_score"`
	MaxScore        float64   `json:"max_score"`
	SampleCount     int       `json:"sample_count"`
}

// Analyze computes the full report in one pass over the history.
func Analyze(history []score.Snapshot) Report {
	dir, ok := DirectionOf(history)
	min, max := ScoreRange(history)
	return Report{
		Direction:       dir,
		SufficientData:  ok,
		Volatility:      Volatility(history),
		ImprovementRate: ImprovementRate(history),
		MinScore:        min,
		MaxScore:        max,
		SampleCount:     len(history),
	}
}

func overallScores(history []score.Snapshot) []float64 {
	out := make([]float64, len(history))
	for i, s := range history {
		out[i] = s.Overall
	}
	return out
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
