// Package platform defines the contracts for the external collaborators
// the workflow engine talks to: the messaging platform and the mail
// relay. The engine never holds platform state; everything behind these
// interfaces is replaceable, and tests substitute in-memory fakes.
package platform

import "context"

// EntryTypeMessage is the history entry type for ordinary user messages.
// Platform-generated entries (joins, topic changes) carry other types
// and are excluded from conversation summaries.
const EntryTypeMessage = "message"

// HistoryEntry is one message fetched from a conversation's history.
type HistoryEntry struct {
	AuthorIsBot bool
	Type        string
	Text        string
}

// Messenger is the messaging-platform collaborator.
//
// Implementations may fail or time out; callers degrade gracefully
// rather than abort a workflow on a messaging failure.
type Messenger interface {
	// OpenGroup opens an ephemeral shared conversation for the given
	// participants and returns its channel reference.
	OpenGroup(ctx context.Context, participantIDs []string) (string, error)

	// CloseGroup requests closure of an ephemeral conversation.
	// Closure can fail for platform reasons; failures are not retried.
	CloseGroup(ctx context.Context, channelID string) error

	// PostMessage posts text to a channel.
	PostMessage(ctx context.Context, channelID, text string) error

	// History fetches up to limit entries from a channel, newest last.
	History(ctx context.Context, channelID string, limit int) ([]HistoryEntry, error)
}

// Mailer is the notification (email) collaborator. A nil Mailer is
// valid everywhere one is accepted; mail is strictly best-effort.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
