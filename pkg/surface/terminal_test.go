package surface_test

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/surface"
	"github.com/breathescope/breathescope/pkg/trend"
)

func sampleView() *surface.View {
	return &surface.View{
		Snapshot: &score.Snapshot{
			UserID:    "alice",
			Timestamp: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
			Overall:   58.5,
			Components: score.ComponentScores{
				Respiratory:    52.0,
				Cardiovascular: 61.0,
				Immune:         64.0,
				ActivityImpact: 59.0,
			},
			RiskCategory: score.RiskMedium,
			RiskLevel:    0.415,
			ContributingFactors: map[string]float64{
				"aqi":            155,
				"exposure_hours": 4,
			},
			Recommendations: []score.Recommendation{
				{
					ID:          "rec-1",
					Title:       "Limit outdoor exertion",
					Description: "Air quality is unhealthy for sensitive groups. Move workouts indoors until conditions improve.",
					Type:        "activity",
					Priority:    score.PriorityHigh,
				},
				{
					ID:       "rec-2",
					Title:    "Use an air purifier",
					Type:     "lifestyle",
					Priority: score.PriorityCritical,
					IsUrgent: true,
				},
			},
		},
		Trend: &trend.Report{
			Direction:       trend.Declining,
			SufficientData:  true,
			Volatility:      6.2,
			ImprovementRate: -3.1,
			MinScore:        55.0,
			MaxScore:        81.0,
			SampleCount:     9,
		},
	}
}

func TestTerminalRender(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	var buf bytes.Buffer
	r := &surface.TerminalRenderer{}
	if err := r.Render(&buf, sampleView()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Score 58.5",
		"MEDIUM risk",
		"Respiratory     52.0",
		"aqi",
		"Limit outdoor exertion",
		"! Use an air purifier",
		"declining over 9 samples",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTerminalRenderStale(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	view := sampleView()
	view.Stale = true
	view.Trend = nil

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).Render(&buf, view); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), "(stale)") {
		t.Errorf("expected stale marker in output:\n%s", buf.String())
	}
}

func TestTerminalRenderInsufficientTrend(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	view := sampleView()
	view.Trend = &trend.Report{Direction: trend.Stable, SampleCount: 2}

	var buf bytes.Buffer
	if err := (&surface.TerminalRenderer{}).Render(&buf, view); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.Contains(buf.String(), "not enough history") {
		t.Errorf("expected insufficient-history note:\n%s", buf.String())
	}
}

func TestJSONRender(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.JSONRenderer{}).Render(&buf, sampleView()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	var decoded surface.View
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Snapshot.Overall != 58.5 {
		t.Errorf("overall = %v, want 58.5", decoded.Snapshot.Overall)
	}
	if decoded.Trend == nil || decoded.Trend.Direction != trend.Declining {
		t.Errorf("trend not round-tripped: %+v", decoded.Trend)
	}
}

func TestMarkdownReport(t *testing.T) {
	r := &surface.MarkdownRenderer{}
	data := r.BuildReportData(sampleView())

	if data.Status != "caution" {
		t.Errorf("status = %q, want caution", data.Status)
	}
	if !strings.Contains(data.Title, "58.5") {
		t.Errorf("title missing score: %q", data.Title)
	}
	for _, want := range []string{
		"### Components",
		"| Respiratory | 52.0 |",
		":red_circle: **Use an air purifier**",
		"### Trend",
	} {
		if !strings.Contains(data.Summary, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func TestMarkdownStatusByCategory(t *testing.T) {
	tests := []struct {
		category score.RiskCategory
		want     string
	}{
		{score.RiskLow, "good"},
		{score.RiskMedium, "caution"},
		{score.RiskHigh, "alert"},
		{score.RiskCritical, "alert"},
	}
	r := &surface.MarkdownRenderer{}
	for _, tt := range tests {
		view := sampleView()
		view.Snapshot.RiskCategory = tt.category
		if got := r.BuildReportData(view).Status; got != tt.want {
			t.Errorf("status for %s = %q, want %q", tt.category, got, tt.want)
		}
	}
}
