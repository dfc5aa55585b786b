// Package interval provides minute-of-day arithmetic shared by opening
// hours, member availability and schedule blocks. All intervals are
// half-open [Start, End) and confined to a single day.
package interval

import (
	"fmt"
	"time"
)

// Minute is a minute offset from midnight (0..1440).
type Minute int

const (
	// EndOfDay is the exclusive upper bound for a same-day interval.
	EndOfDay Minute = 24 * 60
)

// ParseMinute parses a "HH:MM" clock string into a Minute.
func ParseMinute(s string) (Minute, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parsing clock time %q: %w", s, err)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return Minute(h*60 + m), nil
}

// MustMinute is ParseMinute for test fixtures and static tables.
func MustMinute(s string) Minute {
	m, err := ParseMinute(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String formats the minute as "HH:MM".
func (m Minute) String() string {
	return fmt.Sprintf("%02d:%02d", int(m)/60, int(m)%60)
}

// Add returns the minute shifted by d, truncated to whole minutes.
func (m Minute) Add(d time.Duration) Minute {
	return m + Minute(d/time.Minute)
}

// Valid reports whether the minute lies within a single day.
func (m Minute) Valid() bool {
	return m >= 0 && m <= EndOfDay
}

// Interval is a half-open [Start, End) span of one day.
type Interval struct {
	Start Minute `json:"start"`
	End   Minute `json:"end"`
}

// New builds an interval from minutes since midnight.
func New(start, end Minute) Interval {
	return Interval{Start: start, End: end}
}

// Validate reports whether the interval is well-formed and within a day.
func (iv Interval) Validate() error {
	if !iv.Start.Valid() || !iv.End.Valid() {
		return fmt.Errorf("interval %s outside day bounds", iv)
	}
	if iv.End <= iv.Start {
		return fmt.Errorf("interval %s is empty or inverted", iv)
	}
	return nil
}

// Duration returns the interval length.
func (iv Interval) Duration() time.Duration {
	return time.Duration(iv.End-iv.Start) * time.Minute
}

// Contains reports whether other lies entirely inside iv.
func (iv Interval) Contains(other Interval) bool {
	return other.Start >= iv.Start && other.End <= iv.End
}

// ContainsMinute reports whether m lies inside the half-open interval.
func (iv Interval) ContainsMinute(m Minute) bool {
	return m >= iv.Start && m < iv.End
}

// Overlaps reports whether the two half-open intervals intersect.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// Gap returns the distance from the end of iv to the start of later.
// Negative when the intervals overlap or later starts first.
func (iv Interval) Gap(later Interval) time.Duration {
	return time.Duration(later.Start-iv.End) * time.Minute
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s)", iv.Start, iv.End)
}

// Normalized reports whether the intervals are sorted by start and
// pairwise non-overlapping, the required form for availability sets.
func Normalized(ivs []Interval) bool {
	for i := range ivs {
		if ivs[i].Validate() != nil {
			return false
		}
		if i > 0 && ivs[i].Start < ivs[i-1].End {
			return false
		}
	}
	return true
}

// AnyContains reports whether any interval in the set fully contains other.
func AnyContains(ivs []Interval, other Interval) bool {
	for _, iv := range ivs {
		if iv.Contains(other) {
			return true
		}
	}
	return false
}
