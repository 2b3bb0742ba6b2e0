// Package community holds the engagement features layered on top of
// the workflow engine: anonymous feedback intake and the daily
// birthday sweep.
package community

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/huddlebot/huddle/internal/platform"
	"github.com/huddlebot/huddle/internal/store"
)

// DefaultFeedbackCategory is used when the submitter gives none.
const DefaultFeedbackCategory = "general"

// FeedbackService stores anonymous feedback and relays it to the
// operators. The submitter's identity is never persisted or forwarded.
type FeedbackService struct {
	store    *store.Store
	msgr     platform.Messenger
	mailer   platform.Mailer // may be nil
	opsChan  string          // may be empty
	opsEmail string          // may be empty
	now      func() time.Time
}

// NewFeedbackService wires feedback intake. mailer may be nil;
// opsChannel and opsEmail may be empty, disabling that relay.
func NewFeedbackService(s *store.Store, msgr platform.Messenger, mailer platform.Mailer, opsChannel, opsEmail string) *FeedbackService {
	return &FeedbackService{
		store:    s,
		msgr:     msgr,
		mailer:   mailer,
		opsChan:  opsChannel,
		opsEmail: opsEmail,
		now:      time.Now,
	}
}

// Submit persists one anonymous feedback entry and notifies the
// operators. Relay failures are logged; the entry is already durable.
func (f *FeedbackService) Submit(ctx context.Context, content, category string) (string, error) {
	if category == "" {
		category = DefaultFeedbackCategory
	}

	entry := &store.Feedback{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Category:  category,
		Content:   content,
		CreatedAt: f.now(),
	}
	if err := f.store.CreateFeedback(ctx, entry); err != nil {
		return "", fmt.Errorf("submit feedback: %w", err)
	}

	if f.opsChan != "" {
		msg := fmt.Sprintf("*New anonymous feedback*\nCategory: %s\nID: %s\n\n%s", category, entry.ID, content)
		if err := f.msgr.PostMessage(ctx, f.opsChan, msg); err != nil {
			slog.Error("feedback relay to channel failed", "feedback", entry.ID, "error", err)
		}
	}
	if f.mailer != nil && f.opsEmail != "" {
		subject := fmt.Sprintf("Anonymous feedback: %s", category)
		body := fmt.Sprintf("New anonymous feedback was received.\n\nCategory: %s\nContent: %s\n", category, content)
		if err := f.mailer.Send(ctx, f.opsEmail, subject, body); err != nil {
			slog.Error("feedback relay by mail failed", "feedback", entry.ID, "error", err)
		}
	}

	slog.Info("feedback received", "feedback", entry.ID, "category", category)
	return entry.ID, nil
}
