// Package schedule defines the versioned schedule aggregate: concrete
// placements of activities in time, the mutation proposals that edit
// them, and the violation and conflict vocabulary shared by the
// feasibility checker, the optimizer and the conflict resolver.
package schedule

import (
	"slices"
	"strings"
	"time"

	"github.com/tripweave/engine/internal/domain/interval"
)

// BlockStatus is the lifecycle state of a schedule block.
type BlockStatus string

const (
	BlockScheduled BlockStatus = "scheduled"
	BlockConfirmed BlockStatus = "confirmed"
	BlockCancelled BlockStatus = "cancelled"
)

// Block binds one activity to a concrete start time on a trip day,
// and to zero or more assigned members.
type Block struct {
	ID         string          `json:"id"`
	ActivityID string          `json:"activity_id"`
	Day        int             `json:"day"`
	Start      interval.Minute `json:"start"`
	Duration   time.Duration   `json:"duration"`
	MemberIDs  []string        `json:"member_ids,omitempty"`
	Status     BlockStatus     `json:"status"`
}

// Span returns the block's occupied interval within its day.
func (b Block) Span() interval.Interval {
	return interval.Interval{Start: b.Start, End: b.Start.Add(b.Duration)}
}

// HasMember reports whether the member is assigned to the block.
func (b Block) HasMember(memberID string) bool {
	return slices.Contains(b.MemberIDs, memberID)
}

func (b Block) clone() Block {
	b.MemberIDs = slices.Clone(b.MemberIDs)
	return b
}

// Schedule is the full set of blocks for one trip, versioned by a
// monotonically increasing sequence number. Version 0 is the empty
// schedule before any accepted mutation.
type Schedule struct {
	TripID  string  `json:"trip_id"`
	Version uint64  `json:"version"`
	Blocks  []Block `json:"blocks"`
}

// Clone returns a deep copy, used for scratch validation and for
// read-only snapshots handed outside the owning actor.
func (s *Schedule) Clone() *Schedule {
	out := &Schedule{TripID: s.TripID, Version: s.Version, Blocks: make([]Block, len(s.Blocks))}
	for i, b := range s.Blocks {
		out.Blocks[i] = b.clone()
	}
	return out
}

// Block returns the block with the given id.
func (s *Schedule) Block(id string) (Block, bool) {
	for _, b := range s.Blocks {
		if b.ID == id {
			return b, true
		}
	}
	return Block{}, false
}

// Sort orders blocks by day, start time, then id for deterministic
// iteration and diffing.
func (s *Schedule) Sort() {
	slices.SortFunc(s.Blocks, CompareBlocks)
}

// CompareBlocks orders blocks by (day, start, id).
func CompareBlocks(a, b Block) int {
	if a.Day != b.Day {
		return a.Day - b.Day
	}
	if a.Start != b.Start {
		return int(a.Start - b.Start)
	}
	return strings.Compare(a.ID, b.ID)
}
