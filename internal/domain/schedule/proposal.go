package schedule

import (
	"fmt"
	"slices"

	"github.com/tripweave/engine/internal/domain/interval"
)

// OpKind is one mutation operation type.
type OpKind string

const (
	OpAdd      OpKind = "add"
	OpMove     OpKind = "move"
	OpRemove   OpKind = "remove"
	OpReassign OpKind = "reassign"
	// OpReplaceAll swaps the entire block set in one mutation. This is
	// the path optimizer results take, so a full replacement is gated
	// by the same conflict rules as a manual edit.
	OpReplaceAll OpKind = "replace_all"
)

// Op is a single operation within a proposal.
type Op struct {
	Kind OpKind `json:"kind"`
	// Block carries the new block for add.
	Block *Block `json:"block,omitempty"`
	// BlockID targets an existing block for move, remove, reassign.
	BlockID string `json:"block_id,omitempty"`
	// Day and Start carry the new placement for move.
	Day   int             `json:"day,omitempty"`
	Start interval.Minute `json:"start,omitempty"`
	// MemberIDs carries the new assignment for reassign.
	MemberIDs []string `json:"member_ids,omitempty"`
	// Blocks carries the full replacement set for replace_all.
	Blocks []Block `json:"blocks,omitempty"`
}

// Proposal is a client-submitted mutation against a known schedule
// version. Proposals are immutable once submitted; resubmitting the
// same id at the same base version is an idempotent replay.
type Proposal struct {
	ID          string `json:"id"`
	TripID      string `json:"trip_id"`
	AuthorID    string `json:"author_id,omitempty"`
	BaseVersion uint64 `json:"base_version"`
	Ops         []Op   `json:"ops"`
}

// Delta is the committed effect of one accepted proposal, retained in
// the mutation log so later stale proposals can be checked for true
// overlap instead of being rejected outright.
type Delta struct {
	Version    uint64  `json:"version"`
	ProposalID string  `json:"proposal_id"`
	Added      []Block `json:"added,omitempty"`
	Removed    []Block `json:"removed,omitempty"`
	Updated    []Block `json:"updated,omitempty"`
}

// TouchedActivities returns the set of activity ids the delta edits.
func (d Delta) TouchedActivities() map[string]struct{} {
	out := make(map[string]struct{})
	for _, blocks := range [][]Block{d.Added, d.Removed, d.Updated} {
		for _, b := range blocks {
			out[b.ActivityID] = struct{}{}
		}
	}
	return out
}

// TouchedMembers returns the set of member ids the delta edits.
func (d Delta) TouchedMembers() map[string]struct{} {
	out := make(map[string]struct{})
	for _, blocks := range [][]Block{d.Added, d.Removed, d.Updated} {
		for _, b := range blocks {
			for _, m := range b.MemberIDs {
				out[m] = struct{}{}
			}
		}
	}
	return out
}

// Intersects reports whether the delta touches any of the given
// activity or member ids.
func (d Delta) Intersects(activityIDs, memberIDs map[string]struct{}) bool {
	for id := range d.TouchedActivities() {
		if _, ok := activityIDs[id]; ok {
			return true
		}
	}
	for id := range d.TouchedMembers() {
		if _, ok := memberIDs[id]; ok {
			return true
		}
	}
	return false
}

// Apply applies the proposal structurally to a scratch copy of s and
// returns the new block set together with the delta it produces.
// Feasibility is not judged here; structural failures (unknown block,
// duplicate id) are errors, not conflicts.
func Apply(s *Schedule, p Proposal) (*Schedule, *Delta, error) {
	next := s.Clone()
	delta := &Delta{ProposalID: p.ID}

	for i, op := range p.Ops {
		switch op.Kind {
		case OpAdd:
			if op.Block == nil {
				return nil, nil, fmt.Errorf("%w: op %d has no block", ErrMalformedProposal, i)
			}
			if _, exists := next.Block(op.Block.ID); exists {
				return nil, nil, fmt.Errorf("%w: block %s already exists", ErrMalformedProposal, op.Block.ID)
			}
			b := op.Block.clone()
			next.Blocks = append(next.Blocks, b)
			delta.Added = append(delta.Added, b)

		case OpMove:
			idx := indexOfBlock(next, op.BlockID)
			if idx < 0 {
				return nil, nil, fmt.Errorf("%w: block %s", ErrBlockNotFound, op.BlockID)
			}
			before := next.Blocks[idx].clone()
			next.Blocks[idx].Day = op.Day
			next.Blocks[idx].Start = op.Start
			delta.Removed = append(delta.Removed, before)
			delta.Updated = append(delta.Updated, next.Blocks[idx].clone())

		case OpRemove:
			idx := indexOfBlock(next, op.BlockID)
			if idx < 0 {
				return nil, nil, fmt.Errorf("%w: block %s", ErrBlockNotFound, op.BlockID)
			}
			delta.Removed = append(delta.Removed, next.Blocks[idx].clone())
			next.Blocks = slices.Delete(next.Blocks, idx, idx+1)

		case OpReassign:
			idx := indexOfBlock(next, op.BlockID)
			if idx < 0 {
				return nil, nil, fmt.Errorf("%w: block %s", ErrBlockNotFound, op.BlockID)
			}
			before := next.Blocks[idx].clone()
			next.Blocks[idx].MemberIDs = slices.Clone(op.MemberIDs)
			delta.Removed = append(delta.Removed, before)
			delta.Updated = append(delta.Updated, next.Blocks[idx].clone())

		case OpReplaceAll:
			delta.Removed = append(delta.Removed, next.Blocks...)
			next.Blocks = make([]Block, 0, len(op.Blocks))
			for _, b := range op.Blocks {
				next.Blocks = append(next.Blocks, b.clone())
			}
			delta.Added = append(delta.Added, next.Blocks...)

		default:
			return nil, nil, fmt.Errorf("%w: unknown op kind %q", ErrMalformedProposal, op.Kind)
		}
	}

	next.Sort()
	return next, delta, nil
}

func indexOfBlock(s *Schedule, id string) int {
	for i, b := range s.Blocks {
		if b.ID == id {
			return i
		}
	}
	return -1
}
