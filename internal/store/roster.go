package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Member is one community roster row.
type Member struct {
	MemberID  string `db:"member_id"`
	FirstName string `db:"first_name"`
	Surname   string `db:"surname"`
	FullName  string `db:"full_name"`
	Birthday  string `db:"birthday"` // DD.MM.YYYY, may be empty
	Cohort    string `db:"cohort"`
}

// UpsertMember inserts or replaces a roster row keyed by member id.
// Import runs are re-runnable; the latest sheet wins.
func (s *Store) UpsertMember(ctx context.Context, m *Member) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO roster (member_id, first_name, surname, full_name, birthday, cohort)
		VALUES (:member_id, :first_name, :surname, :full_name, :birthday, :cohort)
		ON CONFLICT(member_id) DO UPDATE SET
			first_name = excluded.first_name,
			surname    = excluded.surname,
			full_name  = excluded.full_name,
			birthday   = excluded.birthday,
			cohort     = excluded.cohort
	`, m)
	if err != nil {
		return fmt.Errorf("upsert member %s: %w", m.MemberID, err)
	}
	return nil
}

// GetMember fetches one roster row. Returns ErrNotFound if absent.
func (s *Store) GetMember(ctx context.Context, memberID string) (*Member, error) {
	var m Member
	err := s.db.GetContext(ctx, &m, `SELECT * FROM roster WHERE member_id = ?`, memberID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", memberID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", memberID, err)
	}
	return &m, nil
}

// ListBirthdays returns members whose birthday falls on the given
// day-month, formatted "DD.MM" to match the imported sheet.
func (s *Store) ListBirthdays(ctx context.Context, dayMonth string) ([]Member, error) {
	members := []Member{}
	err := s.db.SelectContext(ctx, &members, `
		SELECT * FROM roster
		WHERE birthday != '' AND substr(birthday, 1, 5) = ?
		ORDER BY member_id ASC
	`, dayMonth)
	if err != nil {
		return nil, fmt.Errorf("list birthdays %s: %w", dayMonth, err)
	}
	return members, nil
}
