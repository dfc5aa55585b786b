package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/routing"
)

// TravelCache decorates an Estimator with a persistent lookaside
// cache keyed by (mode, origin, destination). Coordinates are
// normalized to five decimal places (about one meter) so equal points
// produced by different float arithmetic hit the same row.
type TravelCache struct {
	db   *DB
	next routing.Estimator
}

// NewTravelCache builds the decorator. The schema must already exist.
func NewTravelCache(db *DB, next routing.Estimator) *TravelCache {
	return &TravelCache{db: db, next: next}
}

// TravelTime returns the cached estimate when present, otherwise
// delegates to the wrapped estimator and stores the result.
// Unresolvable geometry is never cached.
func (c *TravelCache) TravelTime(ctx context.Context, from, to activity.GeoPoint, mode routing.Mode) (time.Duration, error) {
	if !from.Resolved || !to.Resolved {
		return 0, routing.ErrUnresolvableGeometry
	}

	origin := pointKey(from)
	dest := pointKey(to)

	var seconds int64
	err := c.db.QueryRowContext(ctx,
		`SELECT duration_seconds FROM travel_cache WHERE mode = ? AND origin = ? AND destination = ?`,
		string(mode), origin, dest,
	).Scan(&seconds)
	switch {
	case err == nil:
		return time.Duration(seconds) * time.Second, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("travel cache lookup: %w", err)
	}

	d, err := c.next.TravelTime(ctx, from, to, mode)
	if err != nil {
		return 0, err
	}

	if _, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO travel_cache (mode, origin, destination, duration_seconds) VALUES (?, ?, ?, ?)`,
		string(mode), origin, dest, int64(d/time.Second),
	); err != nil {
		return 0, fmt.Errorf("travel cache store: %w", err)
	}
	return d, nil
}

func pointKey(p activity.GeoPoint) string {
	return fmt.Sprintf("%.5f,%.5f", p.Lat, p.Lon)
}
