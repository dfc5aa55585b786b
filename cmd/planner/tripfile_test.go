package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/interval"
	"github.com/tripweave/engine/internal/domain/schedule"
)

const sampleTripFile = `
trip:
  id: trip-lisbon
  name: Lisbon weekend
  start_date: "2026-06-01"
  end_date: "2026-06-03"
  currency: EUR
  budget: 500
seed: 42
preferences:
  museum: 2.0
members:
  - id: alice
    name: Alice
    role: owner
    availability:
      0: [{from: "08:00", to: "22:00"}]
      1: [{from: "08:00", to: "22:00"}]
      2: [{from: "08:00", to: "12:00"}]
activities:
  - id: castle
    name: Sao Jorge Castle
    category: sightseeing
    lat: 38.7139
    lon: -9.1334
    cost: 150
    duration: 90m
    opening_hours:
      monday: [{from: "09:00", to: "18:00"}]
    person_in_charge: alice
`

func writeTripFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trip.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTripFile_Build(t *testing.T) {
	tf, err := loadTripFile(writeTripFile(t, sampleTripFile))
	require.NoError(t, err)

	trip, members, acts, err := tf.build()
	require.NoError(t, err)
	require.Equal(t, "trip-lisbon", trip.ID)
	require.Equal(t, int64(500), trip.BudgetCeiling)
	require.Equal(t, []string{"alice"}, trip.MemberIDs)
	require.Equal(t, 3, trip.Days())

	require.Len(t, members, 1)
	require.True(t, members[0].IsAvailable(0, interval.Interval{Start: 8 * 60, End: 9 * 60}))
	require.False(t, members[0].IsAvailable(2, interval.Interval{Start: 13 * 60, End: 14 * 60}))

	require.Len(t, acts, 1)
	require.Equal(t, activity.CategorySightseeing, acts[0].Category)
	require.Equal(t, 90*time.Minute, acts[0].Duration)
	require.True(t, acts[0].Location.Resolved)
	require.Len(t, acts[0].OpeningHours[time.Monday], 1)

	prefs := tf.preferences()
	require.Equal(t, 2.0, prefs[activity.CategoryMuseum])
}

func TestLoadTripFile_BadWeekday(t *testing.T) {
	broken := sampleTripFile + `
  - id: bad
    name: Bad
    category: park
    lat: 1
    lon: 1
    duration: 30m
    opening_hours:
      moonday: [{from: "09:00", to: "10:00"}]
`
	tf, err := loadTripFile(writeTripFile(t, broken))
	require.NoError(t, err)
	_, _, _, err = tf.build()
	require.ErrorContains(t, err, "unknown weekday")
}

func TestPrintSchedule(t *testing.T) {
	tf, err := loadTripFile(writeTripFile(t, sampleTripFile))
	require.NoError(t, err)

	s := &schedule.Schedule{
		TripID:  "trip-lisbon",
		Version: 1,
		Blocks: []schedule.Block{{
			ID:         "b1",
			ActivityID: "castle",
			Day:        0,
			Start:      10 * 60,
			Duration:   90 * time.Minute,
			MemberIDs:  []string{"alice"},
			Status:     schedule.BlockScheduled,
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, printSchedule(&buf, tf, s))
	out := buf.String()
	require.Contains(t, out, "Sao Jorge Castle")
	require.Contains(t, out, "10:00")
	require.Contains(t, out, "11:30")
}
