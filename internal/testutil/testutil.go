// Package testutil provides in-memory fakes for the platform and
// completion interfaces used by the workflow tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/huddlebot/huddle/internal/platform"
)

// FakeMessenger records posted messages per channel and serves
// scripted conversation history. Safe for concurrent use.
type FakeMessenger struct {
	mu       sync.Mutex
	posts    map[string][]string
	history  map[string][]platform.HistoryEntry
	groups   int
	closed   []string
	PostErr  error
	GroupErr error
}

func NewFakeMessenger() *FakeMessenger {
	return &FakeMessenger{
		posts:   make(map[string][]string),
		history: make(map[string][]platform.HistoryEntry),
	}
}

func (f *FakeMessenger) OpenGroup(ctx context.Context, memberIDs []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GroupErr != nil {
		return "", f.GroupErr
	}
	f.groups++
	return fmt.Sprintf("G%03d", f.groups), nil
}

func (f *FakeMessenger) CloseGroup(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, channelID)
	return nil
}

func (f *FakeMessenger) PostMessage(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PostErr != nil {
		return f.PostErr
	}
	f.posts[channelID] = append(f.posts[channelID], text)
	return nil
}

func (f *FakeMessenger) History(ctx context.Context, channelID string, limit int) ([]platform.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.history[channelID]
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]platform.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// SetHistory scripts the conversation history returned for a channel.
func (f *FakeMessenger) SetHistory(channelID string, entries []platform.HistoryEntry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history[channelID] = entries
}

// Posts returns a copy of the messages posted to a channel.
func (f *FakeMessenger) Posts(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.posts[channelID]))
	copy(out, f.posts[channelID])
	return out
}

// ClosedGroups returns the channels closed so far.
func (f *FakeMessenger) ClosedGroups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.closed))
	copy(out, f.closed)
	return out
}

// FakeCompleter returns a fixed reply, or an error when Err is set.
type FakeCompleter struct {
	Reply string
	Err   error

	mu    sync.Mutex
	calls []string
}

func (f *FakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, userPrompt)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return f.Reply, nil
}

// Calls returns the user prompts seen so far.
func (f *FakeCompleter) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// FakeMailer records sent mail.
type FakeMailer struct {
	mu   sync.Mutex
	sent []SentMail
	Err  error
}

type SentMail struct {
	To      string
	Subject string
	Body    string
}

func (f *FakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sent = append(f.sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of the mail sent so far.
func (f *FakeMailer) Sent() []SentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentMail, len(f.sent))
	copy(out, f.sent)
	return out
}

// ErrInjected is a sentinel for error-injection tests.
var ErrInjected = errors.New("injected failure")
