package activity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tripweave/engine/internal/domain/interval"
)

// ErrInvalidActivity indicates the activity fails structural validation.
var ErrInvalidActivity = errors.New("invalid activity")

// Validate checks the activity's structural invariants.
func (a Activity) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidActivity)
	}
	if a.Duration <= 0 {
		return fmt.Errorf("%w: %s has non-positive duration %s", ErrInvalidActivity, a.ID, a.Duration)
	}
	if a.Cost < 0 {
		return fmt.Errorf("%w: %s has negative cost %d", ErrInvalidActivity, a.ID, a.Cost)
	}
	for wd, ivs := range a.OpeningHours {
		if !interval.Normalized(ivs) {
			return fmt.Errorf("%w: %s opening hours on %s not sorted and disjoint", ErrInvalidActivity, a.ID, wd)
		}
	}
	return nil
}
