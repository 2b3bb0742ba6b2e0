package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huddlebot/huddle/internal/instance"
)

// CastVote records one voter's choice on a poll.
//
// The poll status check and the vote write happen inside a single
// transaction, and the store holds a single writer connection, so a
// vote racing a concurrent close is deterministically accepted (it
// serialized before the close) or rejected with POLL_CLOSED (after) -
// never partially recorded.
//
// Single-choice polls hold at most one row per voter; casting a
// different option supplants the previous row (Changed=true). Casting
// the same option again, on any poll shape, is an accepted no-op.
func (s *Store) CastVote(ctx context.Context, pollID, voterID string, optionIndex int) (instance.VoteResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return instance.VoteResult{}, fmt.Errorf("cast vote: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var poll struct {
		Status        string              `db:"status"`
		AllowMultiple bool                `db:"allow_multiple"`
		Options       instance.OptionList `db:"options"`
	}
	err = tx.GetContext(ctx, &poll, `SELECT status, allow_multiple, options FROM polls WHERE id = ?`, pollID)
	if errors.Is(err, sql.ErrNoRows) {
		return instance.VoteResult{}, fmt.Errorf("poll %s: %w", pollID, ErrNotFound)
	}
	if err != nil {
		return instance.VoteResult{}, fmt.Errorf("cast vote: read poll %s: %w", pollID, err)
	}

	// Linearization point against close: the status read and the write
	// below commit together or the vote is rejected here.
	if poll.Status != instance.StatusActive {
		return instance.VoteResult{Reason: instance.ReasonPollClosed}, nil
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return instance.VoteResult{Reason: instance.ReasonInvalidOption}, nil
	}

	now := time.Now().UTC()
	result := instance.VoteResult{Accepted: true}

	if poll.AllowMultiple {
		// One row per (voter, option); re-casting the same option is a no-op.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO votes (poll_id, voter_id, option_index, cast_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(poll_id, voter_id, option_index) DO NOTHING
		`, pollID, voterID, optionIndex, now)
		if err != nil {
			return instance.VoteResult{}, fmt.Errorf("cast vote: insert: %w", err)
		}
	} else {
		var previous int
		err = tx.GetContext(ctx, &previous, `
			SELECT option_index FROM votes WHERE poll_id = ? AND voter_id = ?
		`, pollID, voterID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.ExecContext(ctx, `
				INSERT INTO votes (poll_id, voter_id, option_index, cast_at)
				VALUES (?, ?, ?, ?)
			`, pollID, voterID, optionIndex, now)
			if err != nil {
				return instance.VoteResult{}, fmt.Errorf("cast vote: insert: %w", err)
			}
		case err != nil:
			return instance.VoteResult{}, fmt.Errorf("cast vote: read existing: %w", err)
		case previous == optionIndex:
			// Same choice again; nothing to change.
		default:
			// Supplant: the new choice replaces the old, never appends.
			_, err = tx.ExecContext(ctx, `
				UPDATE votes SET option_index = ?, cast_at = ?
				WHERE poll_id = ? AND voter_id = ?
			`, optionIndex, now, pollID, voterID)
			if err != nil {
				return instance.VoteResult{}, fmt.Errorf("cast vote: supplant: %w", err)
			}
			result.Changed = true
			result.Previous = previous
		}
	}

	if err := tx.Commit(); err != nil {
		return instance.VoteResult{}, fmt.Errorf("cast vote: commit: %w", err)
	}
	return result, nil
}

// Tally returns vote counts per option index for a poll. Options with
// no votes are absent from the map; callers zero-fill from the poll's
// option list when rendering.
func (s *Store) Tally(ctx context.Context, pollID string) (map[int]int, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT option_index, COUNT(*) AS votes
		FROM votes
		WHERE poll_id = ?
		GROUP BY option_index
		ORDER BY option_index ASC
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("tally %s: %w", pollID, err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var option, votes int
		if err := rows.Scan(&option, &votes); err != nil {
			return nil, fmt.Errorf("tally %s: scan: %w", pollID, err)
		}
		counts[option] = votes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tally %s: iterate: %w", pollID, err)
	}
	return counts, nil
}
