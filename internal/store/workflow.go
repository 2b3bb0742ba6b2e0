package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/huddlebot/huddle/internal/instance"
)

// ErrNotFound is returned when no instance exists for an id.
var ErrNotFound = errors.New("instance not found")

// kindTables maps each workflow kind to its table.
var kindTables = map[instance.Kind]string{
	instance.KindMatch:      "matches",
	instance.KindPoll:       "polls",
	instance.KindEvaluation: "evaluations",
}

// updatableColumns lists the columns Update may touch per kind.
// Identity, kind-shape, and lifecycle-claim columns are excluded:
// status and closed_at change only through CloseInstance.
var updatableColumns = map[instance.Kind]map[string]bool{
	instance.KindMatch: {
		"summary":     true,
		"deadline_at": true,
	},
	instance.KindPoll: {
		"topic":       true,
		"deadline_at": true,
	},
	instance.KindEvaluation: {
		"subject_ref": true,
		"deadline_at": true,
	},
}

// CreateMatch persists a new match instance.
func (s *Store) CreateMatch(ctx context.Context, m *instance.Match) error {
	normalizeMatch(m)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO matches
		(id, status, channel_id, participant_a, participant_b, summary, deadline_at, created_at)
		VALUES (:id, :status, :channel_id, :participant_a, :participant_b, :summary, :deadline_at, :created_at)
	`, m)
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

// CreatePoll persists a new poll instance.
func (s *Store) CreatePoll(ctx context.Context, p *instance.Poll) error {
	normalizePoll(p)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO polls
		(id, status, channel_id, topic, options, allow_multiple, created_by, deadline_at, created_at)
		VALUES (:id, :status, :channel_id, :topic, :options, :allow_multiple, :created_by, :deadline_at, :created_at)
	`, p)
	if err != nil {
		return fmt.Errorf("create poll: %w", err)
	}
	return nil
}

// CreateEvaluation persists a new evaluation instance.
func (s *Store) CreateEvaluation(ctx context.Context, e *instance.Evaluation) error {
	normalizeEvaluation(e)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO evaluations
		(id, status, subject_ref, evaluation_channel_id, true_votes, false_votes, deadline_at, created_at)
		VALUES (:id, :status, :subject_ref, :evaluation_channel_id, :true_votes, :false_votes, :deadline_at, :created_at)
	`, e)
	if err != nil {
		return fmt.Errorf("create evaluation: %w", err)
	}
	return nil
}

// GetMatch fetches a match by id. Returns ErrNotFound if none exists.
func (s *Store) GetMatch(ctx context.Context, id string) (*instance.Match, error) {
	var m instance.Match
	err := s.db.GetContext(ctx, &m, `SELECT * FROM matches WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("match %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get match %s: %w", id, err)
	}
	return &m, nil
}

// GetPoll fetches a poll by id. Returns ErrNotFound if none exists.
func (s *Store) GetPoll(ctx context.Context, id string) (*instance.Poll, error) {
	var p instance.Poll
	err := s.db.GetContext(ctx, &p, `SELECT * FROM polls WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("poll %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get poll %s: %w", id, err)
	}
	return &p, nil
}

// GetEvaluation fetches an evaluation by id. Returns ErrNotFound if none exists.
func (s *Store) GetEvaluation(ctx context.Context, id string) (*instance.Evaluation, error) {
	var e instance.Evaluation
	err := s.db.GetContext(ctx, &e, `SELECT * FROM evaluations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation %s: %w", id, err)
	}
	return &e, nil
}

// GetEvaluationByChannel fetches the most recently created evaluation
// bound to a channel. The channel binding is unique in practice; if
// historical rows share a channel, the newest wins.
func (s *Store) GetEvaluationByChannel(ctx context.Context, channelID string) (*instance.Evaluation, error) {
	var e instance.Evaluation
	err := s.db.GetContext(ctx, &e, `
		SELECT * FROM evaluations
		WHERE evaluation_channel_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation for channel %s: %w", channelID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation by channel %s: %w", channelID, err)
	}
	return &e, nil
}

// Update writes the given columns of one instance, leaving every other
// column untouched (field-level merge - concurrent updates to disjoint
// fields never clobber each other).
//
// Columns are validated against a per-kind allowlist; lifecycle columns
// (status, closed_at) are rejected here and change only through
// CloseInstance.
func (s *Store) Update(ctx context.Context, kind instance.Kind, id string, fields map[string]any) error {
	table, ok := kindTables[kind]
	if !ok {
		return fmt.Errorf("update: unknown kind %q", kind)
	}
	if len(fields) == 0 {
		return nil
	}

	allowed := updatableColumns[kind]
	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !allowed[col] {
			return fmt.Errorf("update %s: column %q is not updatable", table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols) // deterministic statement text

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = col + " = ?"
		args = append(args, normalizeValue(fields[col]))
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s %s: rows affected: %w", table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// ListDueForClose returns active instances of one kind whose deadline
// has passed. This is the recovery scan: the boot-time scan and the
// periodic sweep both resolve missed deadlines through it.
//
// Results are ordered by deadline so the longest-overdue instance is
// finalized first.
func (s *Store) ListDueForClose(ctx context.Context, kind instance.Kind, now time.Time) ([]instance.Due, error) {
	table, ok := kindTables[kind]
	if !ok {
		return nil, fmt.Errorf("list due: unknown kind %q", kind)
	}

	due := []instance.Due{}
	err := s.db.SelectContext(ctx, &due, fmt.Sprintf(`
		SELECT id, deadline_at FROM %s
		WHERE status = ? AND deadline_at IS NOT NULL AND deadline_at <= ?
		ORDER BY deadline_at ASC, id ASC
	`, table), instance.ActiveStatus(kind), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list due %s: %w", table, err)
	}
	return due, nil
}

// ListActiveWithDeadline returns active instances whose deadline is
// still in the future. Used at boot to re-arm live timers that were
// lost with the previous process.
func (s *Store) ListActiveWithDeadline(ctx context.Context, kind instance.Kind, now time.Time) ([]instance.Due, error) {
	table, ok := kindTables[kind]
	if !ok {
		return nil, fmt.Errorf("list active: unknown kind %q", kind)
	}

	pending := []instance.Due{}
	err := s.db.SelectContext(ctx, &pending, fmt.Sprintf(`
		SELECT id, deadline_at FROM %s
		WHERE status = ? AND deadline_at IS NOT NULL AND deadline_at > ?
		ORDER BY deadline_at ASC, id ASC
	`, table), instance.ActiveStatus(kind), now.UTC())
	if err != nil {
		return nil, fmt.Errorf("list active %s: %w", table, err)
	}
	return pending, nil
}

// CloseInstance performs the guarded terminal transition for one
// instance: active status -> terminal status, closed_at set, plus any
// extra columns (e.g. the match summary) in the same statement.
//
// Exactly one caller observes claimed=true; a second finalize attempt
// matches zero rows and returns claimed=false with no error. Callers
// perform notification side effects only when they hold the claim, so
// timer firing and a stale recovery sweep can both invoke close safely.
func (s *Store) CloseInstance(ctx context.Context, kind instance.Kind, id string, closedAt time.Time, extra map[string]any) (bool, error) {
	table, ok := kindTables[kind]
	if !ok {
		return false, fmt.Errorf("close: unknown kind %q", kind)
	}

	cols := make([]string, 0, len(extra))
	for col := range extra {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := []string{"status = ?", "closed_at = ?"}
	args := []any{instance.TerminalStatus(kind), closedAt.UTC()}
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, normalizeValue(extra[col]))
	}
	args = append(args, id, instance.ActiveStatus(kind))

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND status = ?", table, strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return false, fmt.Errorf("close %s %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("close %s %s: rows affected: %w", table, id, err)
	}
	return n == 1, nil
}

// IncrementVerdict adds one true or false verdict to an evaluation via
// an atomic read-modify-write in SQL. Two simultaneous verdicts are
// both counted; no increment is ever lost to a stale read.
//
// The status guard makes the count monotonic only until resolution:
// a verdict arriving after the instance turned terminal matches zero
// rows and returns counted=false.
func (s *Store) IncrementVerdict(ctx context.Context, id string, verdict bool) (bool, error) {
	col := "false_votes"
	if verdict {
		col = "true_votes"
	}

	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE evaluations SET %s = %s + 1
		WHERE id = ? AND status = ?
	`, col, col), id, instance.StatusEvaluating)
	if err != nil {
		return false, fmt.Errorf("increment verdict %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment verdict %s: rows affected: %w", id, err)
	}
	return n == 1, nil
}

// normalizeValue forces time values to UTC before binding, keeping the
// driver's string encoding comparable across rows.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}
		u := t.UTC()
		return &u
	}
	return v
}

func normalizeMatch(m *instance.Match) {
	m.CreatedAt = m.CreatedAt.UTC()
	if m.DeadlineAt != nil {
		u := m.DeadlineAt.UTC()
		m.DeadlineAt = &u
	}
	if m.Status == "" {
		m.Status = instance.StatusActive
	}
}

func normalizePoll(p *instance.Poll) {
	p.CreatedAt = p.CreatedAt.UTC()
	if p.DeadlineAt != nil {
		u := p.DeadlineAt.UTC()
		p.DeadlineAt = &u
	}
	if p.Status == "" {
		p.Status = instance.StatusActive
	}
}

func normalizeEvaluation(e *instance.Evaluation) {
	e.CreatedAt = e.CreatedAt.UTC()
	if e.DeadlineAt != nil {
		u := e.DeadlineAt.UTC()
		e.DeadlineAt = &u
	}
	if e.Status == "" {
		e.Status = instance.StatusEvaluating
	}
}
