package activity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/interval"
)

func museum(overflow bool) activity.Activity {
	return activity.Activity{
		ID:       "museum",
		Name:     "City Museum",
		Category: activity.CategoryMuseum,
		Duration: time.Hour,
		OpeningHours: map[time.Weekday][]interval.Interval{
			time.Monday: {{Start: interval.MustMinute("09:00"), End: interval.MustMinute("17:00")}},
		},
		AllowOverflow: overflow,
	}
}

func TestWindowsOn(t *testing.T) {
	a := museum(false)

	windows := a.WindowsOn(time.Monday)
	require.Len(t, windows, 1)
	require.Equal(t, interval.MustMinute("09:00"), windows[0].Start)

	// Absent weekday means closed.
	require.Empty(t, a.WindowsOn(time.Tuesday))

	// No opening hours at all means open all day.
	a.OpeningHours = nil
	windows = a.WindowsOn(time.Sunday)
	require.Len(t, windows, 1)
	require.Equal(t, interval.EndOfDay, windows[0].End)
}

func TestFitsWindow(t *testing.T) {
	a := museum(false)
	span := func(start string, d time.Duration) interval.Interval {
		s := interval.MustMinute(start)
		return interval.Interval{Start: s, End: s.Add(d)}
	}

	require.True(t, a.FitsWindow(time.Monday, span("10:00", time.Hour)))
	// Ending exactly at close is allowed.
	require.True(t, a.FitsWindow(time.Monday, span("16:00", time.Hour)))
	// Running past close is not.
	require.False(t, a.FitsWindow(time.Monday, span("16:30", time.Hour)))
	// Starting before open is not.
	require.False(t, a.FitsWindow(time.Monday, span("08:30", time.Hour)))
	// Closed day.
	require.False(t, a.FitsWindow(time.Tuesday, span("10:00", time.Hour)))

	// Overflow permits crossing the close, but not starting outside.
	o := museum(true)
	require.True(t, o.FitsWindow(time.Monday, span("16:30", time.Hour)))
	require.False(t, o.FitsWindow(time.Monday, span("17:30", time.Hour)))

	// Overflow never runs past midnight.
	late := museum(true)
	late.OpeningHours[time.Monday] = []interval.Interval{
		{Start: interval.MustMinute("20:00"), End: interval.MustMinute("23:45")},
	}
	require.True(t, late.FitsWindow(time.Monday, span("23:00", time.Hour)))
	require.False(t, late.FitsWindow(time.Monday, span("23:30", time.Hour)))
}

func TestValidate(t *testing.T) {
	require.NoError(t, museum(false).Validate())

	missing := museum(false)
	missing.ID = " "
	require.ErrorIs(t, missing.Validate(), activity.ErrInvalidActivity)

	zeroDur := museum(false)
	zeroDur.Duration = 0
	require.ErrorIs(t, zeroDur.Validate(), activity.ErrInvalidActivity)

	negCost := museum(false)
	negCost.Cost = -1
	require.ErrorIs(t, negCost.Validate(), activity.ErrInvalidActivity)

	overlapping := museum(false)
	overlapping.OpeningHours[time.Monday] = []interval.Interval{
		{Start: interval.MustMinute("09:00"), End: interval.MustMinute("12:00")},
		{Start: interval.MustMinute("11:00"), End: interval.MustMinute("17:00")},
	}
	require.ErrorIs(t, overlapping.Validate(), activity.ErrInvalidActivity)
}
