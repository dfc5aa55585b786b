package schedule

// ConflictReason classifies why a proposal was rejected.
type ConflictReason string

const (
	// ReasonInfeasible: the tentatively applied schedule violated at
	// least one hard constraint.
	ReasonInfeasible ConflictReason = "infeasible"
	// ReasonStaleVersion: the proposal's base version is behind the
	// live schedule and its edits truly overlap the intervening diff.
	ReasonStaleVersion ConflictReason = "stale_version"
)

// ConflictRecord describes a rejected proposal: which invariants
// failed and against which existing blocks. The schedule is unchanged
// when a ConflictRecord is produced.
type ConflictRecord struct {
	TripID         string         `json:"trip_id"`
	ProposalID     string         `json:"proposal_id"`
	Reason         ConflictReason `json:"reason"`
	BaseVersion    uint64         `json:"base_version"`
	CurrentVersion uint64         `json:"current_version"`
	Violations     []Violation    `json:"violations,omitempty"`
	// ConflictingBlockIDs names the committed blocks the proposal
	// collided with, when known.
	ConflictingBlockIDs []string `json:"conflicting_block_ids,omitempty"`
	Message             string   `json:"message"`
}
