// Package roster imports community members from CSV and renders
// profile cards.
//
// The import sheet has a header row; recognized columns (matched
// case-insensitively, in any order) are member_id, first_name,
// surname, full_name, birthday, cohort. Unknown columns are ignored.
// CSV parsing uses encoding/csv; the records are plain flat rows and
// need nothing more.
package roster

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/huddlebot/huddle/internal/store"
)

// Importer loads roster rows into the store.
type Importer struct {
	store *store.Store
}

// NewImporter creates an importer over the store.
func NewImporter(s *store.Store) *Importer {
	return &Importer{store: s}
}

// ImportCSV reads member rows from r and upserts them, returning the
// number of members imported. Rows without a member id are skipped
// with a warning; a malformed file fails as a whole.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("import roster: empty file")
	}
	if err != nil {
		return 0, fmt.Errorf("import roster: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["member_id"]; !ok {
		return 0, fmt.Errorf("import roster: header has no member_id column")
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	count := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("import roster: line %d: %w", line, err)
		}

		m := &store.Member{
			MemberID:  field(row, "member_id"),
			FirstName: field(row, "first_name"),
			Surname:   field(row, "surname"),
			FullName:  field(row, "full_name"),
			Birthday:  field(row, "birthday"),
			Cohort:    field(row, "cohort"),
		}
		if m.MemberID == "" {
			slog.Warn("skipping roster row without member id", "line", line)
			continue
		}
		if m.FullName == "" {
			m.FullName = strings.TrimSpace(m.FirstName + " " + m.Surname)
		}

		if err := im.store.UpsertMember(ctx, m); err != nil {
			return count, fmt.Errorf("import roster: line %d: %w", line, err)
		}
		count++
	}

	slog.Info("roster imported", "members", count)
	return count, nil
}

// ProfileCard renders a member's stored record for display back to
// them. Returns store.ErrNotFound (wrapped) when unregistered.
func ProfileCard(ctx context.Context, s *store.Store, memberID string) (string, error) {
	m, err := s.GetMember(ctx, memberID)
	if err != nil {
		return "", fmt.Errorf("profile card: %w", err)
	}

	name := m.FullName
	if name == "" {
		name = m.MemberID
	}
	birthday := m.Birthday
	if birthday == "" {
		birthday = "not set"
	}
	cohort := m.Cohort
	if cohort == "" {
		cohort = "not set"
	}

	var b strings.Builder
	b.WriteString("*Member profile*\n")
	fmt.Fprintf(&b, "Name: %s\n", name)
	fmt.Fprintf(&b, "Cohort: %s\n", cohort)
	fmt.Fprintf(&b, "Birthday: %s", birthday)
	return b.String(), nil
}
