package engine

import (
	"context"
	"time"

	"github.com/breathescope/breathescope/pkg/notify"
	"github.com/breathescope/breathescope/pkg/score"
)

// LocationProvider resolves the user's current position.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (lat, lon float64, err error)
}

// AirQualityProvider supplies exposure samples for a position.
type AirQualityProvider interface {
	Current(ctx context.Context, lat, lon float64) (*score.ExposureSample, error)
	Historical(ctx context.Context, lat, lon float64, hours int) ([]score.ExposureSample, error)
}

// LatestLoader is implemented by stores that can hand back the most
// recent committed snapshot. Engines use it to resume serving reads
// after a restart.
type LatestLoader interface {
	LatestSnapshot(ctx context.Context, userID string) (*score.Snapshot, error)
}

// Store persists score history. Assumed durable and strongly consistent
// per user.
type Store interface {
	// SaveSnapshot appends a new snapshot to the user's history.
	SaveSnapshot(ctx context.Context, snap *score.Snapshot) error
	// ReplaceLatest overwrites the most recent history entry, used when a
	// recommendation lifecycle event produces a new snapshot version
	// sharing the same timestamp key.
	ReplaceLatest(ctx context.Context, snap *score.Snapshot) error
	// LoadHistory returns snapshots in ascending timestamp order.
	LoadHistory(ctx context.Context, userID string, start, end time.Time) ([]score.Snapshot, error)
	// SaveTriggerEvents records alert decisions for the delivery
	// collaborator to pick up.
	SaveTriggerEvents(ctx context.Context, userID string, events []notify.TriggerEvent) error
}
