package schedule

import "fmt"

// ViolationKind identifies which hard constraint a schedule breaks.
// The declaration order is the fixed precedence in which the
// feasibility checker reports violations.
type ViolationKind string

const (
	// OutsideOpeningHours: a block does not fit any opening window of
	// its activity for the block's day.
	OutsideOpeningHours ViolationKind = "outside_opening_hours"
	// MemberUnavailable: an assigned member is not free for the
	// block's whole interval.
	MemberUnavailable ViolationKind = "member_unavailable"
	// InsufficientTravelBuffer: two same-day blocks sharing a member
	// are closer together than the travel time between them.
	InsufficientTravelBuffer ViolationKind = "insufficient_travel_buffer"
	// BudgetExceeded: the summed cost of non-cancelled blocks exceeds
	// the trip's budget ceiling.
	BudgetExceeded ViolationKind = "budget_exceeded"
	// UnresolvableGeometry: a travel-time lookup involved an activity
	// with no resolved coordinates. Treated as a permanent hard
	// violation, never as a zero distance.
	UnresolvableGeometry ViolationKind = "unresolvable_geometry"
)

// kindRank fixes the reporting precedence.
var kindRank = map[ViolationKind]int{
	OutsideOpeningHours:      0,
	MemberUnavailable:        1,
	InsufficientTravelBuffer: 2,
	BudgetExceeded:           3,
	UnresolvableGeometry:     4,
}

// Rank returns the kind's position in the reporting precedence.
func (k ViolationKind) Rank() int { return kindRank[k] }

// Violation describes one hard-constraint failure, naming the block
// and, where applicable, the member and the existing block it
// collides with.
type Violation struct {
	Kind       ViolationKind `json:"kind"`
	BlockID    string        `json:"block_id,omitempty"`
	ActivityID string        `json:"activity_id,omitempty"`
	MemberID   string        `json:"member_id,omitempty"`
	// AgainstBlockID names the earlier block for travel-buffer
	// violations.
	AgainstBlockID string `json:"against_block_id,omitempty"`
	Message        string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Kind, v.Message)
}
