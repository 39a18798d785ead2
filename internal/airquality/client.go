package airquality

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/breathescope/breathescope/pkg/score"
)

// Client fetches pollution data from an OpenWeather-compatible air
// pollution API and implements the engine's AirQualityProvider port.
type Client struct {
	http   *resty.Client
	apiKey string
}

// NewClient creates a client for the given API base URL and key.
func NewClient(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second)
	return &Client{http: c, apiKey: apiKey}
}

// pollutionResponse mirrors the provider's wire format.
type pollutionResponse struct {
	List []pollutionEntry `json:"list"`
}

type pollutionEntry struct {
	Dt         int64              `json:"dt"`
	Components map[string]float64 `json:"components"`
}

// Current returns the latest exposure sample for the position.
func (c *Client) Current(ctx context.Context, lat, lon float64) (*score.ExposureSample, error) {
	var out pollutionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":   fmt.Sprintf("%f", lat),
			"lon":   fmt.Sprintf("%f", lon),
			"appid": c.apiKey,
		}).
		SetResult(&out).
		Get("/air_pollution")
	if err != nil {
		return nil, fmt.Errorf("fetch current pollution: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pollution API returned %s", resp.Status())
	}
	if len(out.List) == 0 {
		return nil, fmt.Errorf("pollution API returned no readings")
	}
	sample := sampleFromEntry(out.List[0], lat, lon)
	return &sample, nil
}

// Historical returns hourly exposure samples for the lookback window,
// ascending by timestamp.
func (c *Client) Historical(ctx context.Context, lat, lon float64, hours int) ([]score.ExposureSample, error) {
	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)

	var out pollutionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat":   fmt.Sprintf("%f", lat),
			"lon":   fmt.Sprintf("%f", lon),
			"start": fmt.Sprintf("%d", start.Unix()),
			"end":   fmt.Sprintf("%d", end.Unix()),
			"appid": c.apiKey,
		}).
		SetResult(&out).
		Get("/air_pollution/history")
	if err != nil {
		return nil, fmt.Errorf("fetch historical pollution: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("pollution API returned %s", resp.Status())
	}

	samples := make([]score.ExposureSample, 0, len(out.List))
	for _, entry := range out.List {
		samples = append(samples, sampleFromEntry(entry, lat, lon))
	}
	return samples, nil
}

func sampleFromEntry(entry pollutionEntry, lat, lon float64) score.ExposureSample {
	pm25 := entry.Components["pm2_5"]
	pm10 := entry.Components["pm10"]
	return score.ExposureSample{
		Timestamp:  time.Unix(entry.Dt, 0).UTC(),
		AQI:        CombinedAQI(pm25, pm10),
		PM25:       pm25,
		Latitude:   lat,
		Longitude:  lon,
		Pollutants: entry.Components,
		Source:     "pollution-api",
	}
}
