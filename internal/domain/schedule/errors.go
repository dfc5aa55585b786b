package schedule

import "errors"

var (
	// ErrBlockNotFound indicates a proposal targeted a block id that
	// does not exist in the schedule it was applied to.
	ErrBlockNotFound = errors.New("schedule block not found")
	// ErrMalformedProposal indicates a structurally invalid proposal
	// (missing payload, duplicate block id, unknown op kind).
	ErrMalformedProposal = errors.New("malformed proposal")
)
