package trend_test

import (
	"testing"
	"time"

	"github.com/breathescope/breathescope/pkg/score"
	"github.com/breathescope/breathescope/pkg/trend"
)

func history(scores ...float64) []score.Snapshot {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]score.Snapshot, len(scores))
	for i, s := range scores {
		out[i] = score.Snapshot{
			UserID:    "user-1",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Overall:   s,
		}
	}
	return out
}

func TestDirectionOf(t *testing.T) {
	cases := []struct {
		name     string
		scores   []float64
		want     trend.Direction
		wantData bool
	}{
		{"improving", []float64{50, 55, 60, 65, 70, 75}, trend.Improving, true},
		{"declining", []float64{80, 78, 76, 74, 72, 70}, trend.Declining, true},
		{"stable", []float64{70, 71, 69, 70, 71, 70}, trend.Stable, true},
		{"too few samples", []float64{60, 80}, trend.Stable, false},
		{"empty", nil, trend.Stable, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := trend.DirectionOf(history(tc.scores...))
			if got != tc.want {
				t.Errorf("direction = %v, want %v", got, tc.want)
			}
			if ok != tc.wantData {
				t.Errorf("sufficient data = %v, want %v", ok, tc.wantData)
			}
		})
	}
}

func TestDirectionOf_SymmetricUnderNegation(t *testing.T) {
	scores := []float64{50, 55, 60, 65, 70, 75}
	mirrored := make([]float64, len(scores))
	for i, s := range scores {
		mirrored[i] = 100 - s
	}

	dir, _ := trend.DirectionOf(history(scores...))
	mirroredDir, _ := trend.DirectionOf(history(mirrored...))

	if dir != trend.Improving {
		t.Fatalf("base history direction = %v, want improving", dir)
	}
	if mirroredDir != trend.Declining {
		t.Errorf("mirrored history direction = %v, want declining", mirroredDir)
	}
}

func TestVolatility(t *testing.T) {
	if v := trend.Volatility(history(70)); v != 0 {
		t.Errorf("single sample volatility = %v, want 0", v)
	}
	if v := trend.Volatility(history(70, 70, 70)); v != 0 {
		t.Errorf("constant series volatility = %v, want 0", v)
	}
	if v := trend.Volatility(history(0, 0)); v != 0 {
		t.Errorf("zero-mean volatility = %v, want 0 sentinel", v)
	}

	varied := trend.Volatility(history(50, 90, 50, 90))
	steady := trend.Volatility(history(68, 72, 68, 72))
	if varied <= steady {
		t.Errorf("varied series volatility %v should exceed steady %v", varied, steady)
	}
}

func TestImprovementRate(t *testing.T) {
	// (70-80) / (6/7) ~= -11.67 points per week.
	rate := trend.ImprovementRate(history(80, 78, 76, 74, 72, 70))
	if rate >= 0 {
		t.Errorf("declining history rate = %v, want negative", rate)
	}
	want := (70.0 - 80.0) / (6.0 / 7.0)
	if diff := rate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("rate = %v, want %v", rate, want)
	}
}

func TestScoreRange(t *testing.T) {
	min, max := trend.ScoreRange(history(72, 65, 88, 70))
	if min != 65 || max != 88 {
		t.Errorf("range = (%v, %v), want (65, 88)", min, max)
	}

	min, max = trend.ScoreRange(nil)
	if min != 0 || max != 0 {
		t.Errorf("empty range = (%v, %v), want (0, 0)", min, max)
	}
}

func TestAnalyze_DecliningHistory(t *testing.T) {
	report := trend.Analyze(history(80, 78, 76, 74, 72, 70))

	if report.Direction != trend.Declining {
		t.Errorf("direction = %v, want declining", report.Direction)
	}
	if !report.SufficientData {
		t.Error("expected sufficient data with 6 samples")
	}
	if report.ImprovementRate >= 0 {
		t.Errorf("improvement rate = %v, want negative", report.ImprovementRate)
	}
	if report.Volatility <= 0 {
		t.Errorf("volatility = %v, want positive", report.Volatility)
	}
	if report.MinScore != 70 || report.MaxScore != 80 {
		t.Errorf("range = (%v, %v), want (70, 80)", report.MinScore, report.MaxScore)
	}
	if report.SampleCount != 6 {
		t.Errorf("sample count = %d, want 6", report.SampleCount)
	}
}
