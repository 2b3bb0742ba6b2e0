package instance

import "time"

// RejectReason categorizes why a vote was not recorded.
// These are normal outcomes surfaced to the caller, not errors.
type RejectReason string

const (
	// ReasonPollClosed indicates the poll was already terminal when the
	// vote arrived. The check is atomic with respect to a concurrent
	// close: a vote racing the deadline is deterministically accepted
	// or rejected, never partially recorded.
	ReasonPollClosed RejectReason = "POLL_CLOSED"

	// ReasonInvalidOption indicates the option index is out of range
	// for the poll's option list.
	ReasonInvalidOption RejectReason = "INVALID_OPTION"
)

// VoteRecord is one persisted (poll, voter, option) row.
type VoteRecord struct {
	PollID      string    `db:"poll_id"`
	VoterID     string    `db:"voter_id"`
	OptionIndex int       `db:"option_index"`
	CastAt      time.Time `db:"cast_at"`
}

// VoteResult reports the outcome of a cast-vote attempt.
//
// When a single-choice poll already holds a different vote for the
// voter, the existing vote is supplanted (Changed=true, Previous set)
// rather than rejected; vote-changing before closure is allowed.
type VoteResult struct {
	Accepted bool
	Changed  bool
	Previous int // option index replaced; meaningful only when Changed
	Reason   RejectReason
}
