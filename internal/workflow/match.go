package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/huddlebot/huddle/internal/instance"
	"github.com/huddlebot/huddle/internal/llm"
	"github.com/huddlebot/huddle/internal/platform"
	"github.com/huddlebot/huddle/internal/store"
)

// DefaultMatchDuration is how long a match conversation stays open.
const DefaultMatchDuration = 5 * time.Minute

// historyLimit bounds how much conversation history the close routine
// fetches for summarization.
const historyLimit = 50

// NoConversationSummary is stored when the participants never wrote
// anything; the LLM is not invoked for an empty transcript.
const NoConversationSummary = "no conversation occurred"

// fallbackSummary is stored when there was a conversation but the
// summarization call failed. A degraded close beats a stuck instance.
const fallbackSummary = "summary unavailable"

const icebreakerSystemPrompt = "You are a friendly community assistant. " +
	"Two colleagues were just paired for a short break conversation. " +
	"Write a brief, warm opening message that helps them start talking. " +
	"Two sentences at most."

const summarySystemPrompt = "You analyze a short chat transcript and " +
	"summarize the topics discussed in one sentence."

// MatchService runs the pairwise match lifecycle: open an ephemeral
// group, seed it, close and summarize after a fixed delay.
type MatchService struct {
	store    *store.Store
	sched    *Scheduler
	msgr     platform.Messenger
	llm      llm.Completer // may be nil; every use has a static fallback
	opsChan  string        // operator channel for summary reports; may be empty
	duration time.Duration
	now      func() time.Time

	// Waiting pool for self-serve match requests: first requester
	// waits, second is paired with them (FIFO).
	poolMu sync.Mutex
	pool   []string
}

// NewMatchService wires the match lifecycle. completer may be nil and
// opsChannel may be empty; duration <= 0 selects the default.
func NewMatchService(s *store.Store, sched *Scheduler, msgr platform.Messenger, completer llm.Completer, opsChannel string, duration time.Duration) *MatchService {
	if duration <= 0 {
		duration = DefaultMatchDuration
	}
	return &MatchService{
		store:    s,
		sched:    sched,
		msgr:     msgr,
		llm:      completer,
		opsChan:  opsChannel,
		duration: duration,
		now:      time.Now,
	}
}

// Finalizer returns the scheduler registration for matches.
func (m *MatchService) Finalizer() Finalizer {
	return Finalizer{Kind: instance.KindMatch, Close: m.Close, Rearm: true}
}

// Start pairs two participants: opens an ephemeral group, persists the
// instance, posts an opening message, and schedules the close.
//
// The opening message is generated by the LLM collaborator when one is
// available; a collaborator failure degrades to a static greeting
// rather than aborting the match.
func (m *MatchService) Start(ctx context.Context, participantA, participantB string) (*instance.Match, error) {
	channelID, err := m.msgr.OpenGroup(ctx, []string{participantA, participantB})
	if err != nil {
		return nil, fmt.Errorf("start match: open group: %w", err)
	}

	now := m.now().UTC()
	deadline := now.Add(m.duration)
	match := &instance.Match{
		ID:           uuid.Must(uuid.NewV7()).String(),
		Status:       instance.StatusActive,
		ChannelID:    channelID,
		ParticipantA: participantA,
		ParticipantB: participantB,
		DeadlineAt:   &deadline,
		CreatedAt:    now,
	}
	if err := m.store.CreateMatch(ctx, match); err != nil {
		return nil, fmt.Errorf("start match: %w", err)
	}

	greeting := m.icebreaker(ctx, participantA, participantB)
	if err := m.msgr.PostMessage(ctx, channelID, RenderMatchOpening(greeting, m.duration)); err != nil {
		slog.Error("match opening message failed", "match", match.ID, "channel", channelID, "error", err)
	}

	m.sched.ScheduleOnce(match.ID, deadline, m.Close)
	slog.Info("match started",
		"match", match.ID,
		"channel", channelID,
		"participant_a", participantA,
		"participant_b", participantB,
		"deadline_at", deadline,
	)
	return match, nil
}

// Request adds a participant to the waiting pool, pairing them with
// the earliest waiting participant if one exists. Returns the match
// when a pair formed, nil when the requester is now waiting.
func (m *MatchService) Request(ctx context.Context, participant string) (*instance.Match, error) {
	m.poolMu.Lock()
	for _, waiting := range m.pool {
		if waiting == participant {
			m.poolMu.Unlock()
			return nil, nil // already waiting; keep their place
		}
	}
	if len(m.pool) == 0 {
		m.pool = append(m.pool, participant)
		m.poolMu.Unlock()
		return nil, nil
	}
	partner := m.pool[0]
	m.pool = m.pool[1:]
	m.poolMu.Unlock()

	return m.Start(ctx, partner, participant)
}

// Close finalizes a match: summarizes the conversation, claims the
// terminal transition, then notifies and requests group closure.
//
// Idempotent: if the instance is already closed, or another invocation
// claims the transition first, Close returns with no side effects.
func (m *MatchService) Close(ctx context.Context, id string) error {
	match, err := m.store.GetMatch(ctx, id)
	if err != nil {
		return fmt.Errorf("close match: %w", err)
	}
	if instance.Terminal(match.Status) {
		return nil
	}

	summary := m.summarize(ctx, match.ChannelID)

	claimed, err := m.store.CloseInstance(ctx, instance.KindMatch, id, m.now(), map[string]any{
		"summary": summary,
	})
	if err != nil {
		return fmt.Errorf("close match: %w", err)
	}
	if !claimed {
		// Lost the race to a concurrent close; its side effects stand.
		return nil
	}

	if err := m.msgr.PostMessage(ctx, match.ChannelID, MatchClosingMessage); err != nil {
		slog.Error("match closing message failed", "match", id, "error", err)
	}
	if m.opsChan != "" {
		report := RenderMatchReport(match, summary)
		if err := m.msgr.PostMessage(ctx, m.opsChan, report); err != nil {
			slog.Error("match report failed", "match", id, "channel", m.opsChan, "error", err)
		}
	}
	// Closure is best-effort: a platform failure here is logged, not
	// retried, and never reopens the instance.
	if err := m.msgr.CloseGroup(ctx, match.ChannelID); err != nil {
		slog.Error("group closure failed", "match", id, "channel", match.ChannelID, "error", err)
	}

	slog.Info("match closed", "match", id, "channel", match.ChannelID)
	return nil
}

// icebreaker asks the LLM collaborator for an opening message, falling
// back to a static greeting on any failure.
func (m *MatchService) icebreaker(ctx context.Context, participantA, participantB string) string {
	if m.llm == nil {
		return FallbackGreeting
	}
	prompt := fmt.Sprintf("These two community members were just matched for a coffee break: <@%s> and <@%s>. Greet them.", participantA, participantB)
	text, err := m.llm.Complete(ctx, icebreakerSystemPrompt, prompt)
	if err != nil || strings.TrimSpace(text) == "" {
		slog.Warn("icebreaker generation failed, using fallback", "error", err)
		return FallbackGreeting
	}
	return strings.TrimSpace(text)
}

// summarize fetches the conversation and produces the stored summary.
// Platform-generated entries are excluded; with no participant-authored
// content the fixed no-conversation summary is stored and the LLM is
// not invoked.
func (m *MatchService) summarize(ctx context.Context, channelID string) string {
	entries, err := m.msgr.History(ctx, channelID, historyLimit)
	if err != nil {
		slog.Error("history fetch failed", "channel", channelID, "error", err)
		return fallbackSummary
	}

	var lines []string
	for _, e := range entries {
		if e.AuthorIsBot || e.Type != platform.EntryTypeMessage {
			continue
		}
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		lines = append(lines, "Participant: "+e.Text)
	}
	if len(lines) == 0 {
		return NoConversationSummary
	}
	if m.llm == nil {
		return fallbackSummary
	}

	summary, err := m.llm.Complete(ctx, summarySystemPrompt, "Transcript:\n"+strings.Join(lines, "\n"))
	if err != nil || strings.TrimSpace(summary) == "" {
		slog.Error("summary generation failed, using fallback", "channel", channelID, "error", err)
		return fallbackSummary
	}
	return strings.TrimSpace(summary)
}
