package notify_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/breathescope/breathescope/pkg/notify"
	"github.com/breathescope/breathescope/pkg/score"
)

func snap(overall float64, cat score.RiskCategory, recs ...score.Recommendation) *score.Snapshot {
	return &score.Snapshot{
		UserID:          "user-1",
		Timestamp:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Overall:         overall,
		RiskCategory:    cat,
		Recommendations: recs,
	}
}

func newTrigger() *notify.Trigger {
	return notify.New(zerolog.Nop())
}

func TestEvaluate_NilPreviousEmitsNothing(t *testing.T) {
	current := snap(10, score.RiskCritical, score.Recommendation{ID: "r1", IsUrgent: true})
	events := newTrigger().Evaluate(nil, current)
	if len(events) != 0 {
		t.Errorf("first-ever computation emitted %d events, want 0", len(events))
	}
}

func TestEvaluate_ScoreDrop(t *testing.T) {
	// 70 -> 45 is a 25 point drop, above the 20 point threshold.
	events := newTrigger().Evaluate(snap(70, score.RiskLow), snap(45, score.RiskHigh))

	var drop *notify.TriggerEvent
	for i := range events {
		if events[i].Type == notify.ScoreDropAlert {
			drop = &events[i]
		}
	}
	if drop == nil {
		t.Fatal("expected a score drop alert")
	}
	if drop.ChangeValue != -25 {
		t.Errorf("change value = %v, want -25", drop.ChangeValue)
	}
	if drop.Severity != notify.SeverityHigh {
		t.Errorf("severity = %v, want high for a 25 point drop", drop.Severity)
	}
}

func TestEvaluate_SmallDropNoAlert(t *testing.T) {
	events := newTrigger().Evaluate(snap(70, score.RiskLow), snap(55, score.RiskMedium))
	for _, e := range events {
		if e.Type == notify.ScoreDropAlert {
			t.Errorf("15 point drop should not trigger a score drop alert")
		}
	}
}

func TestEvaluate_RiskCategoryChange(t *testing.T) {
	events := newTrigger().Evaluate(snap(55, score.RiskMedium), snap(45, score.RiskHigh))

	found := false
	for _, e := range events {
		if e.Type == notify.RiskCategoryChangeAlert {
			found = true
		}
	}
	if !found {
		t.Error("medium -> high transition should emit a category change alert")
	}
}

func TestEvaluate_CategoryImprovementAlsoReported(t *testing.T) {
	events := newTrigger().Evaluate(snap(45, score.RiskHigh), snap(85, score.RiskLow))

	var change *notify.TriggerEvent
	for i := range events {
		if events[i].Type == notify.RiskCategoryChangeAlert {
			change = &events[i]
		}
	}
	if change == nil {
		t.Fatal("improvement should still emit a category change alert")
	}
	if change.Severity != notify.SeverityLow {
		t.Errorf("severity = %v, want low (celebratory) for a big improvement", change.Severity)
	}
}

func TestEvaluate_UrgentRecommendationFirstOnly(t *testing.T) {
	current := snap(75, score.RiskLow,
		score.Recommendation{ID: "r1", Title: "first", IsUrgent: true},
		score.Recommendation{ID: "r2", Title: "second", IsUrgent: true},
	)
	events := newTrigger().Evaluate(snap(75, score.RiskLow), current)

	var urgent []notify.TriggerEvent
	for _, e := range events {
		if e.Type == notify.UrgentRecommendationAlert {
			urgent = append(urgent, e)
		}
	}
	if len(urgent) != 1 {
		t.Fatalf("got %d urgent alerts, want exactly 1 per cycle", len(urgent))
	}
	if urgent[0].Recommendation == nil || urgent[0].Recommendation.ID != "r1" {
		t.Errorf("urgent alert should carry the first urgent recommendation")
	}
}

func TestEvaluate_NoChangesNoEvents(t *testing.T) {
	events := newTrigger().Evaluate(snap(75, score.RiskLow), snap(74, score.RiskLow))
	if len(events) != 0 {
		t.Errorf("stable transition emitted %d events, want 0", len(events))
	}
}

func TestEvaluate_MalformedScoreDegradesToMinimal(t *testing.T) {
	// An out-of-range score must never fail evaluation.
	events := newTrigger().Evaluate(snap(70, score.RiskLow), snap(-12, score.RiskCritical))

	if len(events) == 0 {
		t.Fatal("expected events despite malformed score")
	}
	for _, e := range events {
		if e.Severity != notify.SeverityMinimal {
			t.Errorf("malformed input severity = %v, want minimal", e.Severity)
		}
	}
}

func TestSeverityFromAQI(t *testing.T) {
	cases := []struct {
		aqi  float64
		want notify.Severity
	}{
		{320, notify.SeverityCritical},
		{210, notify.SeverityHigh},
		{160, notify.SeverityHigh},
		{120, notify.SeverityModerate},
		{60, notify.SeverityLow},
		{20, notify.SeverityMinimal},
	}
	for _, tc := range cases {
		if got := notify.SeverityFromAQI(tc.aqi); got != tc.want {
			t.Errorf("SeverityFromAQI(%v) = %v, want %v", tc.aqi, got, tc.want)
		}
	}
}
