// Package sensorhook handles signed exposure pushes from personal air
// quality sensors and community stations.
package sensorhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/breathescope/breathescope/internal/airquality"
	"github.com/breathescope/breathescope/pkg/score"
)

// VerifySignature validates the X-Breathescope-Signature-256 header
// against the payload.
func VerifySignature(payload []byte, signature string, secret []byte) error {
	if !strings.HasPrefix(signature, "sha256=") {
		return fmt.Errorf("invalid signature format")
	}
	sig, err := hex.DecodeString(signature[7:])
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	expected := mac.Sum(nil)

	if !hmac.Equal(sig, expected) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

// PushEvent is a batch of readings pushed by one sensor for one user.
type PushEvent struct {
	UserID   string    `json:"user_id"`
	SensorID string    `json:"sensor_id"`
	Readings []Reading `json:"readings"`
}

// Reading is one raw sensor measurement. AQI is optional; when absent it
// is derived from the particulate concentrations.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	AQI       float64   `json:"aqi,omitempty"`
	PM25      float64   `json:"pm2_5"`
	PM10      float64   `json:"pm10,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// ParseEvent parses and validates a sensor push payload.
func ParseEvent(payload []byte) (*PushEvent, error) {
	var e PushEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, fmt.Errorf("parse sensor push: %w", err)
	}
	if e.UserID == "" {
		return nil, fmt.Errorf("sensor push missing user_id")
	}
	if len(e.Readings) == 0 {
		return nil, fmt.Errorf("sensor push has no readings")
	}
	return &e, nil
}

// Samples converts the raw readings to exposure samples, deriving AQI
// from particulates when the sensor does not report one.
func (e *PushEvent) Samples() []score.ExposureSample {
	out := make([]score.ExposureSample, 0, len(e.Readings))
	for _, r := range e.Readings {
		aqi := r.AQI
		if aqi == 0 {
			aqi = airquality.CombinedAQI(r.PM25, r.PM10)
		}
		ts := r.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		out = append(out, score.ExposureSample{
			Timestamp: ts,
			AQI:       aqi,
			PM25:      r.PM25,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Pollutants: map[string]float64{
				"pm2_5": r.PM25,
				"pm10":  r.PM10,
			},
			Source: "sensor:" + e.SensorID,
		})
	}
	return out
}
