// Package activity defines schedulable activities: geo-located,
// categorized things a group can do, with opening-hours windows and a
// fixed cost. Activities are created and edited by the surrounding
// application and handed to the engine as read-mostly inputs.
package activity

import (
	"time"

	"github.com/tripweave/engine/internal/domain/interval"
)

// Category classifies an activity for preference scoring and for
// same-category substitution during optimization.
type Category string

const (
	CategorySightseeing   Category = "sightseeing"
	CategoryRestaurant    Category = "restaurant"
	CategoryHotel         Category = "hotel"
	CategoryTransport     Category = "transport"
	CategoryShopping      Category = "shopping"
	CategoryEntertainment Category = "entertainment"
	CategoryOutdoor       Category = "outdoor"
	CategoryCulture       Category = "culture"
	CategoryNightlife     Category = "nightlife"
	CategoryBeach         Category = "beach"
	CategoryMuseum        Category = "museum"
	CategoryPark          Category = "park"
	CategoryTheater       Category = "theater"
	CategorySports        Category = "sports"
	CategorySpa           Category = "spa"
	CategoryOther         Category = "other"
)

// Status is the lifecycle state of an activity.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// GeoPoint is a WGS84 coordinate. Resolved reports whether the
// surrounding application managed to geocode the activity; an
// unresolved point yields an unknown travel time, which the
// feasibility checker treats as a violation rather than zero.
type GeoPoint struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Resolved bool    `json:"resolved"`
}

// Activity is one schedulable candidate.
type Activity struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Location GeoPoint `json:"location"`
	// Cost in minor units of the trip currency.
	Cost     int64         `json:"cost"`
	Duration time.Duration `json:"duration"`
	// OpeningHours maps a weekday to the activity's open windows,
	// sorted and non-overlapping. An absent weekday means closed.
	// An empty map means open all day, every day.
	OpeningHours map[time.Weekday][]interval.Interval `json:"opening_hours"`
	// AllowOverflow permits a block to run past the window close
	// (e.g. a dinner reservation with last seating before close).
	AllowOverflow bool `json:"allow_overflow"`
	// PersonInCharge optionally pins the member responsible.
	PersonInCharge string `json:"person_in_charge,omitempty"`
	Status         Status `json:"status"`
}

// WindowsOn returns the opening windows for a weekday. An always-open
// activity reports a single full-day window.
func (a Activity) WindowsOn(wd time.Weekday) []interval.Interval {
	if len(a.OpeningHours) == 0 {
		return []interval.Interval{{Start: 0, End: interval.EndOfDay}}
	}
	return a.OpeningHours[wd]
}

// FitsWindow reports whether a block spanning span on the given
// weekday satisfies the opening-hours invariant: the start must lie in
// a window, and the end must not cross the window close unless the
// activity allows overflow. Overflow never extends past midnight; all
// minute-of-day math is same-day.
func (a Activity) FitsWindow(wd time.Weekday, span interval.Interval) bool {
	if span.End > interval.EndOfDay {
		return false
	}
	for _, w := range a.WindowsOn(wd) {
		if !w.ContainsMinute(span.Start) {
			continue
		}
		if span.End <= w.End || a.AllowOverflow {
			return true
		}
	}
	return false
}
