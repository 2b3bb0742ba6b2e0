package store

import (
	"context"
	"fmt"
	"time"
)

// Feedback is one anonymous feedback row. There is deliberately no
// author column; anonymity is structural, not policy.
type Feedback struct {
	ID        string    `db:"id"`
	Category  string    `db:"category"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// CreateFeedback persists one feedback entry.
func (s *Store) CreateFeedback(ctx context.Context, f *Feedback) error {
	f.CreatedAt = f.CreatedAt.UTC()
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO feedback (id, category, content, created_at)
		VALUES (:id, :category, :content, :created_at)
	`, f)
	if err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// ListFeedback returns feedback entries, newest first, up to limit.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]Feedback, error) {
	entries := []Feedback{}
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM feedback
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	return entries, nil
}
