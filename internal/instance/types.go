package instance

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies a workflow instance's concrete shape and table.
type Kind string

const (
	KindMatch      Kind = "match"
	KindPoll       Kind = "poll"
	KindEvaluation Kind = "evaluation"
)

// Valid reports whether k names a known workflow kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMatch, KindPoll, KindEvaluation:
		return true
	}
	return false
}

// Status values. Matches and polls run active→closed; evaluations run
// evaluating→resolved. Terminal states are never left.
const (
	StatusActive     = "active"
	StatusClosed     = "closed"
	StatusEvaluating = "evaluating"
	StatusResolved   = "resolved"
)

// ActiveStatus returns the initial (non-terminal) status for a kind.
func ActiveStatus(k Kind) string {
	if k == KindEvaluation {
		return StatusEvaluating
	}
	return StatusActive
}

// TerminalStatus returns the terminal status for a kind.
func TerminalStatus(k Kind) string {
	if k == KindEvaluation {
		return StatusResolved
	}
	return StatusClosed
}

// Match is one pairwise conversation instance.
type Match struct {
	ID           string     `db:"id"`
	Status       string     `db:"status"`
	ChannelID    string     `db:"channel_id"`
	ParticipantA string     `db:"participant_a"`
	ParticipantB string     `db:"participant_b"`
	Summary      string     `db:"summary"`
	DeadlineAt   *time.Time `db:"deadline_at"`
	CreatedAt    time.Time  `db:"created_at"`
	ClosedAt     *time.Time `db:"closed_at"`
}

// Poll is one multi-option vote instance.
type Poll struct {
	ID            string     `db:"id"`
	Status        string     `db:"status"`
	ChannelID     string     `db:"channel_id"`
	Topic         string     `db:"topic"`
	Options       OptionList `db:"options"`
	AllowMultiple bool       `db:"allow_multiple"`
	CreatedBy     string     `db:"created_by"`
	DeadlineAt    *time.Time `db:"deadline_at"`
	CreatedAt     time.Time  `db:"created_at"`
	ClosedAt      *time.Time `db:"closed_at"`
}

// Evaluation is one peer-verdict instance awaiting resolution.
type Evaluation struct {
	ID         string     `db:"id"`
	Status     string     `db:"status"`
	SubjectRef string     `db:"subject_ref"`
	ChannelID  string     `db:"evaluation_channel_id"`
	TrueVotes  int        `db:"true_votes"`
	FalseVotes int        `db:"false_votes"`
	DeadlineAt *time.Time `db:"deadline_at"`
	CreatedAt  time.Time  `db:"created_at"`
	ClosedAt   *time.Time `db:"closed_at"`
}

// Terminal reports whether a status string is a terminal state.
func Terminal(status string) bool {
	return status == StatusClosed || status == StatusResolved
}

// Due is the projection returned by the recovery scan: just enough to
// invoke the kind's close routine, which re-reads full state itself.
type Due struct {
	ID         string    `db:"id"`
	DeadlineAt time.Time `db:"deadline_at"`
}

// OptionList stores poll options as a JSON array in a single TEXT column.
type OptionList []string

// Value implements driver.Valuer.
func (o OptionList) Value() (driver.Value, error) {
	b, err := json.Marshal([]string(o))
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (o *OptionList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	case nil:
		*o = nil
		return nil
	default:
		return fmt.Errorf("scan options: unsupported type %T", src)
	}
	return json.Unmarshal(b, (*[]string)(o))
}
