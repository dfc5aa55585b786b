package trip

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tripweave/engine/internal/domain/interval"
)

var (
	// ErrInvalidTrip indicates the trip fails structural validation.
	ErrInvalidTrip = errors.New("invalid trip")
	// ErrInvalidMember indicates a member fails structural validation.
	ErrInvalidMember = errors.New("invalid member")
)

// Validate checks the trip's structural invariants.
func (t Trip) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTrip)
	}
	if t.EndDate.Before(t.StartDate) {
		return fmt.Errorf("%w: end date %s before start date %s",
			ErrInvalidTrip, t.EndDate.Format("2006-01-02"), t.StartDate.Format("2006-01-02"))
	}
	if t.BudgetCeiling < 0 {
		return fmt.Errorf("%w: negative budget ceiling %d", ErrInvalidTrip, t.BudgetCeiling)
	}
	return nil
}

// Validate checks that availability intervals are sorted, non-empty
// and non-overlapping within each day.
func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidMember)
	}
	for day, ivs := range m.Availability {
		if day < 0 {
			return fmt.Errorf("%w: member %s has availability on negative day %d", ErrInvalidMember, m.ID, day)
		}
		if !interval.Normalized(ivs) {
			return fmt.Errorf("%w: member %s day %d availability not sorted and disjoint", ErrInvalidMember, m.ID, day)
		}
	}
	return nil
}
