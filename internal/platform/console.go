package platform

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ConsoleMessenger is a stand-in Messenger that writes every platform
// call to the structured log instead of a real chat service. It lets
// `huddle serve` run end to end without platform credentials; a real
// adapter implements the same interface.
//
// Thread-safe.
type ConsoleMessenger struct {
	mu   sync.Mutex
	open map[string][]string // channelID -> participants
}

// NewConsoleMessenger creates an empty console messenger.
func NewConsoleMessenger() *ConsoleMessenger {
	return &ConsoleMessenger{open: make(map[string][]string)}
}

// OpenGroup allocates a synthetic channel id and logs the open.
func (c *ConsoleMessenger) OpenGroup(_ context.Context, participantIDs []string) (string, error) {
	id := "grp-" + uuid.Must(uuid.NewV7()).String()
	c.mu.Lock()
	c.open[id] = append([]string(nil), participantIDs...)
	c.mu.Unlock()
	slog.Info("console messenger: group opened", "channel", id, "participants", participantIDs)
	return id, nil
}

// CloseGroup logs the close and forgets the channel.
func (c *ConsoleMessenger) CloseGroup(_ context.Context, channelID string) error {
	c.mu.Lock()
	delete(c.open, channelID)
	c.mu.Unlock()
	slog.Info("console messenger: group closed", "channel", channelID)
	return nil
}

// PostMessage logs the message.
func (c *ConsoleMessenger) PostMessage(_ context.Context, channelID, text string) error {
	slog.Info("console messenger: message", "channel", channelID, "text", text)
	return nil
}

// History returns no entries; console channels keep no transcript.
func (c *ConsoleMessenger) History(_ context.Context, channelID string, limit int) ([]HistoryEntry, error) {
	return []HistoryEntry{}, nil
}
