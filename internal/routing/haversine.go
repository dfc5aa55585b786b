package routing

import (
	"context"
	"math"
	"time"

	"github.com/tripweave/engine/internal/domain/activity"
)

const earthRadiusKm = 6371.0

// Default straight-line speeds per mode, km/h. Deliberately
// conservative for urban trips; a road-network estimator can be
// swapped in behind the same interface.
var defaultSpeeds = map[Mode]float64{
	ModeWalking: 4.5,
	ModeDriving: 35.0,
	ModeTransit: 22.0,
}

// HaversineEstimator estimates travel time from great-circle distance
// and a fixed speed per mode. Pure and deterministic; durations are
// rounded up to whole minutes so the estimate never understates the
// required travel buffer.
type HaversineEstimator struct {
	speeds map[Mode]float64
}

// NewHaversineEstimator returns an estimator with the default speeds.
func NewHaversineEstimator() *HaversineEstimator {
	return &HaversineEstimator{speeds: defaultSpeeds}
}

// TravelTime implements Estimator.
func (e *HaversineEstimator) TravelTime(_ context.Context, from, to activity.GeoPoint, mode Mode) (time.Duration, error) {
	if !from.Resolved || !to.Resolved {
		return 0, ErrUnresolvableGeometry
	}

	speed, ok := e.speeds[mode]
	if !ok {
		speed = e.speeds[ModeWalking]
	}

	km := haversineKm(from, to)
	dur := time.Duration(km / speed * float64(time.Hour))
	return dur.Truncate(time.Minute) + roundUpRemainder(dur), nil
}

func roundUpRemainder(d time.Duration) time.Duration {
	if d%time.Minute == 0 {
		return 0
	}
	return time.Minute
}

func haversineKm(a, b activity.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
