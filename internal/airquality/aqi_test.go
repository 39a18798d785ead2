package airquality

import (
	"math"
	"testing"
)

func TestAQIFromPM25(t *testing.T) {
	tests := []struct {
		name          string
		concentration float64
		want          float64
	}{
		{"zero", 0, 0},
		{"clean band upper edge", 12.0, 50},
		{"moderate band lower edge", 12.1, 51},
		{"moderate midpoint", 23.75, 75.5},
		{"sensitive band", 35.5, 101},
		{"unhealthy band", 55.5, 151},
		{"very unhealthy band", 150.5, 201},
		{"hazardous band", 250.5, 301},
		{"beyond scale clamps", 700, 500},
		{"negative treated as zero", -4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AQIFromPM25(tt.concentration)
			if math.Abs(got-tt.want) > 0.6 {
				t.Errorf("AQIFromPM25(%v) = %v, want ~%v", tt.concentration, got, tt.want)
			}
		})
	}
}

func TestAQIMonotonic(t *testing.T) {
	prev := 0.0
	for c := 0.0; c <= 500; c += 2.5 {
		got := AQIFromPM25(c)
		if got < prev {
			t.Fatalf("AQI not monotonic: f(%v) = %v < previous %v", c, got, prev)
		}
		prev = got
	}
}

func TestCombinedAQIGoverningPollutant(t *testing.T) {
	// PM10 at 300 µg/m³ is unhealthy while PM2.5 at 10 is good;
	// the combined index must follow the worse pollutant.
	got := CombinedAQI(10, 300)
	if got < 151 {
		t.Errorf("CombinedAQI(10, 300) = %v, want >= 151", got)
	}

	// And symmetrically for PM2.5.
	got = CombinedAQI(200, 20)
	if got < 201 {
		t.Errorf("CombinedAQI(200, 20) = %v, want >= 201", got)
	}
}
