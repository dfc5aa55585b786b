// Package feasibility decides hard-constraint satisfaction for a
// schedule against its constraint model. It is the single source of
// truth for validity: the conflict resolver uses it as an
// accept/reject gate and the optimizer wraps it as a fitness penalty.
// Never duplicate these rules elsewhere.
package feasibility

import (
	"fmt"
	"slices"

	"github.com/tripweave/engine/internal/domain/activity"
	"github.com/tripweave/engine/internal/domain/schedule"
	"github.com/tripweave/engine/internal/domain/trip"
	"github.com/tripweave/engine/internal/routing"
)

// Model is the schedulable universe of one trip: pure data, validated
// on construction, mutated only by the trip's owning actor.
type Model struct {
	Trip       trip.Trip
	Members    map[string]trip.Member
	Activities map[string]activity.Activity
}

// NewModel validates and indexes the trip's members and activities.
func NewModel(t trip.Trip, members []trip.Member, acts []activity.Activity) (Model, error) {
	if err := t.Validate(); err != nil {
		return Model{}, err
	}
	m := Model{
		Trip:       t,
		Members:    make(map[string]trip.Member, len(members)),
		Activities: make(map[string]activity.Activity, len(acts)),
	}
	for _, mem := range members {
		if err := mem.Validate(); err != nil {
			return Model{}, err
		}
		m.Members[mem.ID] = mem
	}
	for _, a := range acts {
		if err := a.Validate(); err != nil {
			return Model{}, err
		}
		m.Activities[a.ID] = a
	}
	return m, nil
}

// ActivityList returns the model's activities in deterministic order.
func (m Model) ActivityList() []activity.Activity {
	out := make([]activity.Activity, 0, len(m.Activities))
	for _, a := range m.Activities {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b activity.Activity) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Check evaluates every hard constraint and returns all violations,
// ordered by kind precedence (opening hours, member availability,
// travel buffer, budget) and then by block order. An empty result
// means the schedule is feasible. Cancelled blocks are skipped
// throughout. Check is pure: it never mutates its inputs.
func Check(s *schedule.Schedule, model Model, oracle routing.Oracle) []schedule.Violation {
	active := activeBlocks(s)

	var out []schedule.Violation
	out = append(out, checkOpeningHours(active, model)...)
	out = append(out, checkAvailability(active, model)...)
	travel, geometry := checkTravelBuffers(active, oracle)
	out = append(out, travel...)
	out = append(out, checkBudget(active, model)...)
	out = append(out, checkKnownActivities(active, model)...)
	out = append(out, geometry...)
	return out
}

// checkKnownActivities flags blocks referencing activities the model
// does not know. Such a block has no geometry or windows to judge, so
// it is reported as unresolvable rather than silently passing.
func checkKnownActivities(blocks []schedule.Block, model Model) []schedule.Violation {
	var out []schedule.Violation
	for _, b := range blocks {
		if _, ok := model.Activities[b.ActivityID]; !ok {
			out = append(out, schedule.Violation{
				Kind:       schedule.UnresolvableGeometry,
				BlockID:    b.ID,
				ActivityID: b.ActivityID,
				Message:    fmt.Sprintf("block %s references unknown activity %s", b.ID, b.ActivityID),
			})
		}
	}
	return out
}

func activeBlocks(s *schedule.Schedule) []schedule.Block {
	out := make([]schedule.Block, 0, len(s.Blocks))
	for _, b := range s.Blocks {
		if b.Status == schedule.BlockCancelled {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, schedule.CompareBlocks)
	return out
}

func checkOpeningHours(blocks []schedule.Block, model Model) []schedule.Violation {
	var out []schedule.Violation
	for _, b := range blocks {
		a, ok := model.Activities[b.ActivityID]
		if !ok {
			// Flagged by checkKnownActivities.
			continue
		}
		if b.Day < 0 || b.Day >= model.Trip.Days() {
			out = append(out, schedule.Violation{
				Kind:       schedule.OutsideOpeningHours,
				BlockID:    b.ID,
				ActivityID: b.ActivityID,
				Message:    fmt.Sprintf("block %s scheduled on day %d outside trip range of %d days", b.ID, b.Day, model.Trip.Days()),
			})
			continue
		}
		if !a.FitsWindow(model.Trip.Weekday(b.Day), b.Span()) {
			out = append(out, schedule.Violation{
				Kind:       schedule.OutsideOpeningHours,
				BlockID:    b.ID,
				ActivityID: b.ActivityID,
				Message:    fmt.Sprintf("block %s at %s does not fit opening hours of %s", b.ID, b.Span(), a.Name),
			})
		}
	}
	return out
}

func checkAvailability(blocks []schedule.Block, model Model) []schedule.Violation {
	var out []schedule.Violation
	for _, b := range blocks {
		for _, memberID := range b.MemberIDs {
			member, ok := model.Members[memberID]
			if !ok {
				out = append(out, schedule.Violation{
					Kind:     schedule.MemberUnavailable,
					BlockID:  b.ID,
					MemberID: memberID,
					Message:  fmt.Sprintf("member %s is not part of the trip", memberID),
				})
				continue
			}
			if !member.IsAvailable(b.Day, b.Span()) {
				out = append(out, schedule.Violation{
					Kind:     schedule.MemberUnavailable,
					BlockID:  b.ID,
					MemberID: memberID,
					Message:  fmt.Sprintf("member %s is unavailable for %s on day %d", memberID, b.Span(), b.Day),
				})
			}
		}
	}
	return out
}

// checkTravelBuffers enforces, for every ordered pair of same-day
// blocks sharing a member, B2.start >= B1.end + travel(B1, B2).
// A gap exactly equal to the travel time is feasible. Unknown travel
// times are reported as geometry violations, never treated as zero.
func checkTravelBuffers(blocks []schedule.Block, oracle routing.Oracle) (travel, geometry []schedule.Violation) {
	perMember := make(map[string][]schedule.Block)
	var memberOrder []string
	for _, b := range blocks {
		for _, memberID := range b.MemberIDs {
			if _, seen := perMember[memberID]; !seen {
				memberOrder = append(memberOrder, memberID)
			}
			perMember[memberID] = append(perMember[memberID], b)
		}
	}
	slices.Sort(memberOrder)

	reportedGeometry := make(map[string]struct{})

	for _, memberID := range memberOrder {
		owned := perMember[memberID]
		for i := 0; i < len(owned); i++ {
			for j := i + 1; j < len(owned); j++ {
				earlier, later := owned[i], owned[j]
				if earlier.Day != later.Day {
					continue
				}
				required, known := oracle.TravelTime(earlier.ActivityID, later.ActivityID)
				if !known {
					key := earlier.ActivityID + "|" + later.ActivityID
					if _, dup := reportedGeometry[key]; dup {
						continue
					}
					reportedGeometry[key] = struct{}{}
					geometry = append(geometry, schedule.Violation{
						Kind:           schedule.UnresolvableGeometry,
						BlockID:        later.ID,
						ActivityID:     later.ActivityID,
						MemberID:       memberID,
						AgainstBlockID: earlier.ID,
						Message:        fmt.Sprintf("travel time between %s and %s is unknown", earlier.ActivityID, later.ActivityID),
					})
					continue
				}
				if earlier.Span().Gap(later.Span()) < required {
					travel = append(travel, schedule.Violation{
						Kind:           schedule.InsufficientTravelBuffer,
						BlockID:        later.ID,
						ActivityID:     later.ActivityID,
						MemberID:       memberID,
						AgainstBlockID: earlier.ID,
						Message: fmt.Sprintf("member %s has %s between blocks %s and %s but travel takes %s",
							memberID, earlier.Span().Gap(later.Span()), earlier.ID, later.ID, required),
					})
				}
			}
		}
	}
	return travel, geometry
}

func checkBudget(blocks []schedule.Block, model Model) []schedule.Violation {
	var total int64
	for _, b := range blocks {
		if a, ok := model.Activities[b.ActivityID]; ok {
			total += a.Cost
		}
	}
	if total <= model.Trip.BudgetCeiling {
		return nil
	}
	return []schedule.Violation{{
		Kind: schedule.BudgetExceeded,
		Message: fmt.Sprintf("scheduled cost %d exceeds budget ceiling %d %s",
			total, model.Trip.BudgetCeiling, model.Trip.Currency),
	}}
}

// TotalCost sums the activity costs of all non-cancelled blocks.
func TotalCost(s *schedule.Schedule, model Model) int64 {
	var total int64
	for _, b := range activeBlocks(s) {
		if a, ok := model.Activities[b.ActivityID]; ok {
			total += a.Cost
		}
	}
	return total
}
