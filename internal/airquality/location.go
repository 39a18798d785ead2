package airquality

import (
	"context"
	"fmt"
)

// FixedLocation is a LocationProvider pinned to configured coordinates,
// used when the client has no live position source.
type FixedLocation struct {
	Lat float64
	Lon float64
}

func (f FixedLocation) CurrentLocation(context.Context) (float64, float64, error) {
	if f.Lat == 0 && f.Lon == 0 {
		return 0, 0, fmt.Errorf("no location configured")
	}
	return f.Lat, f.Lon, nil
}
