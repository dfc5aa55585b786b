package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tripweave/engine/internal/domain/activity"
)

// DefaultMatrixConcurrency bounds parallel estimator calls during a
// matrix build.
const DefaultMatrixConcurrency = 5

// Matrix is a precomputed pairwise travel-time table over one trip's
// activity set. It is built once per optimizer invocation (and on
// activity-set changes) and is immutable afterwards, so lookups are
// safe without locks.
type Matrix struct {
	mode      Mode
	index     map[string]int
	durations [][]time.Duration
	known     [][]bool
}

// BuildMatrix computes travel times between all pairs of activities.
// Pairs involving unresolved geometry are recorded as unknown rather
// than failing the build; any other estimator error aborts it.
func BuildMatrix(ctx context.Context, acts []activity.Activity, mode Mode, est Estimator, concurrency int) (*Matrix, error) {
	if concurrency <= 0 {
		concurrency = DefaultMatrixConcurrency
	}

	n := len(acts)
	m := &Matrix{
		mode:      mode,
		index:     make(map[string]int, n),
		durations: make([][]time.Duration, n),
		known:     make([][]bool, n),
	}
	for i, a := range acts {
		if _, dup := m.index[a.ID]; dup {
			return nil, fmt.Errorf("build matrix: duplicate activity id %s", a.ID)
		}
		m.index[a.ID] = i
		m.durations[i] = make([]time.Duration, n)
		m.known[i] = make([]bool, n)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range acts {
		i := i
		g.Go(func() error {
			for j := range acts {
				if i == j {
					m.durations[i][j] = 0
					m.known[i][j] = true
					continue
				}
				d, err := est.TravelTime(ctx, acts[i].Location, acts[j].Location, mode)
				if errors.Is(err, ErrUnresolvableGeometry) {
					continue
				}
				if err != nil {
					return fmt.Errorf("build matrix: %s -> %s: %w", acts[i].ID, acts[j].ID, err)
				}
				m.durations[i][j] = d
				m.known[i][j] = true
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// Mode returns the travel mode the matrix was built for.
func (m *Matrix) Mode() Mode { return m.mode }

// Size returns the number of activities covered.
func (m *Matrix) Size() int { return len(m.index) }

// TravelTime implements Oracle. The second return is false when the
// pair is unknown, either because an activity is not in the matrix or
// because its geometry is unresolved.
func (m *Matrix) TravelTime(fromActivityID, toActivityID string) (time.Duration, bool) {
	i, ok := m.index[fromActivityID]
	if !ok {
		return 0, false
	}
	j, ok := m.index[toActivityID]
	if !ok {
		return 0, false
	}
	if !m.known[i][j] {
		return 0, false
	}
	return m.durations[i][j], true
}
