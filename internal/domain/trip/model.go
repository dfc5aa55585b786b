// Package trip defines the trip aggregate: the date range, budget and
// membership that bound what the scheduling core may place.
package trip

import (
	"time"

	"github.com/tripweave/engine/internal/domain/interval"
)

// Role is a member's role within a trip. Access control is enforced
// upstream; the engine carries the role for attribution only.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Trip is the top-level aggregate. It owns exactly one schedule.
type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Currency  string    `json:"currency"`
	// BudgetCeiling caps the summed cost of all non-cancelled
	// scheduled activities, in minor units of Currency.
	BudgetCeiling int64    `json:"budget_ceiling"`
	MemberIDs     []string `json:"member_ids"`
}

// Days returns the number of schedulable days in the trip, inclusive
// of both endpoints.
func (t Trip) Days() int {
	if t.EndDate.Before(t.StartDate) {
		return 0
	}
	return int(t.EndDate.Sub(t.StartDate).Hours()/24) + 1
}

// DayDate returns the calendar date of the zero-based trip day.
func (t Trip) DayDate(day int) time.Time {
	return t.StartDate.AddDate(0, 0, day)
}

// Weekday returns the weekday of the zero-based trip day, used to
// select activity opening windows.
func (t Trip) Weekday(day int) time.Weekday {
	return t.DayDate(day).Weekday()
}

// Member is a trip participant with per-day availability.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
	// Availability maps a zero-based trip day to the member's free
	// intervals for that day, sorted and non-overlapping. A day with
	// no entry means the member is unavailable all day.
	Availability map[int][]interval.Interval `json:"availability"`
}

// AvailableOn returns the member's free intervals for a trip day.
func (m Member) AvailableOn(day int) []interval.Interval {
	return m.Availability[day]
}

// IsAvailable reports whether the member is free for the whole span.
func (m Member) IsAvailable(day int, span interval.Interval) bool {
	return interval.AnyContains(m.Availability[day], span)
}
