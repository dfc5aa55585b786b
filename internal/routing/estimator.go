// Package routing supplies the travel-time oracle used by the
// feasibility checker and the optimizer: a point-to-point estimator
// behind an interface, and a trip-scoped precomputed matrix that keeps
// the optimizer's inner loop at O(1) per lookup.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/tripweave/engine/internal/domain/activity"
)

// Mode selects the travel profile used for an estimate.
type Mode string

const (
	ModeWalking Mode = "walking"
	ModeDriving Mode = "driving"
	ModeTransit Mode = "transit"
)

// ErrUnresolvableGeometry is returned when either endpoint has no
// resolved coordinates. Callers must surface this as an explicit
// unknown, never as a zero travel time.
var ErrUnresolvableGeometry = errors.New("unresolvable geometry")

// Estimator computes travel time between two geo points. An
// implementation must be deterministic for a given mode.
type Estimator interface {
	TravelTime(ctx context.Context, from, to activity.GeoPoint, mode Mode) (time.Duration, error)
}

// Oracle is the lookup surface handed to the feasibility checker and
// the optimizer: travel time between two activities by id. The second
// return is false when the pair's geometry is unresolvable.
type Oracle interface {
	TravelTime(fromActivityID, toActivityID string) (time.Duration, bool)
}
