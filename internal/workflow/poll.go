package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/huddlebot/huddle/internal/instance"
	"github.com/huddlebot/huddle/internal/platform"
	"github.com/huddlebot/huddle/internal/store"
)

// VoteReply is the caller-facing outcome of a cast-vote request.
// Rejections are normal outcomes, not errors (CONCURRENCY_REJECTION).
type VoteReply struct {
	Accepted bool
	Changed  bool
	Reason   instance.RejectReason
	Message  string
}

// PollService runs the poll lifecycle: open with options and a
// duration, accept votes, tally and announce at the deadline.
type PollService struct {
	store *store.Store
	sched *Scheduler
	msgr  platform.Messenger
	now   func() time.Time
}

// NewPollService wires the poll lifecycle.
func NewPollService(s *store.Store, sched *Scheduler, msgr platform.Messenger) *PollService {
	return &PollService{store: s, sched: sched, msgr: msgr, now: time.Now}
}

// Finalizer returns the scheduler registration for polls.
func (p *PollService) Finalizer() Finalizer {
	return Finalizer{Kind: instance.KindPoll, Close: p.Close, Rearm: true}
}

// Start opens a poll in a channel. Fails with INVALID_POLL when fewer
// than two options are supplied; otherwise persists the instance,
// posts the prompt (one selectable control per supplied option), and
// schedules the close.
func (p *PollService) Start(ctx context.Context, channelID, topic string, options []string, createdBy string, allowMultiple bool, duration time.Duration) (*instance.Poll, error) {
	if len(options) < 2 {
		return nil, NewInvalidPoll(fmt.Sprintf("a poll needs at least two options, got %d", len(options)))
	}

	now := p.now().UTC()
	deadline := now.Add(duration)
	poll := &instance.Poll{
		ID:            uuid.Must(uuid.NewV7()).String(),
		Status:        instance.StatusActive,
		ChannelID:     channelID,
		Topic:         topic,
		Options:       instance.OptionList(options),
		AllowMultiple: allowMultiple,
		CreatedBy:     createdBy,
		DeadlineAt:    &deadline,
		CreatedAt:     now,
	}
	if err := p.store.CreatePoll(ctx, poll); err != nil {
		return nil, fmt.Errorf("start poll: %w", err)
	}

	if err := p.msgr.PostMessage(ctx, channelID, RenderPollPrompt(poll, duration)); err != nil {
		slog.Error("poll prompt failed", "poll", poll.ID, "channel", channelID, "error", err)
	}

	p.sched.ScheduleOnce(poll.ID, deadline, p.Close)
	slog.Info("poll started",
		"poll", poll.ID,
		"channel", channelID,
		"topic", topic,
		"options", len(options),
		"deadline_at", deadline,
	)
	return poll, nil
}

// CastVote records one voter's choice, delegating acceptance to the
// vote ledger. The reply's Message is ready to surface to the voter.
func (p *PollService) CastVote(ctx context.Context, pollID, voterID string, optionIndex int) (VoteReply, error) {
	poll, err := p.store.GetPoll(ctx, pollID)
	if err != nil {
		return VoteReply{}, fmt.Errorf("cast vote: %w", err)
	}

	res, err := p.store.CastVote(ctx, pollID, voterID, optionIndex)
	if err != nil {
		return VoteReply{}, fmt.Errorf("cast vote: %w", err)
	}

	reply := VoteReply{
		Accepted: res.Accepted,
		Changed:  res.Changed,
		Reason:   res.Reason,
		Message:  VoteMessage(poll, res, optionIndex),
	}
	if res.Accepted {
		slog.Info("vote recorded", "poll", pollID, "voter", voterID, "option", optionIndex, "changed", res.Changed)
	} else {
		slog.Info("vote rejected", "poll", pollID, "voter", voterID, "reason", res.Reason)
	}
	return reply, nil
}

// Close finalizes a poll: claims the terminal transition, computes the
// final tally, and announces the result in the origin channel. Ties
// report every leading option; there is no arbitrary tie-break.
//
// Idempotent under timer+sweep double invocation.
func (p *PollService) Close(ctx context.Context, id string) error {
	poll, err := p.store.GetPoll(ctx, id)
	if err != nil {
		return fmt.Errorf("close poll: %w", err)
	}
	if instance.Terminal(poll.Status) {
		return nil
	}

	// Claim before announcing: once the status flips, the ledger
	// rejects new votes, so the tally read below is final.
	claimed, err := p.store.CloseInstance(ctx, instance.KindPoll, id, p.now(), nil)
	if err != nil {
		return fmt.Errorf("close poll: %w", err)
	}
	if !claimed {
		return nil
	}

	tally, err := p.store.Tally(ctx, id)
	if err != nil {
		// The claim stands; a terminal poll without an announcement is
		// preferable to a reopened one.
		slog.Error("final tally failed", "poll", id, "error", err)
		return fmt.Errorf("close poll: tally: %w", err)
	}

	counts := make([]int, len(poll.Options))
	for i := range counts {
		counts[i] = tally[i]
	}
	winners := leaders(counts)

	if err := p.msgr.PostMessage(ctx, poll.ChannelID, RenderPollResults(poll, counts, winners)); err != nil {
		slog.Error("poll announcement failed", "poll", id, "channel", poll.ChannelID, "error", err)
	}

	slog.Info("poll closed", "poll", id, "winners", winners)
	return nil
}

// leaders returns the option indexes holding the maximum count. With
// no votes at all, every option ties at zero and all are returned.
func leaders(counts []int) []int {
	top := 0
	for _, c := range counts {
		if c > top {
			top = c
		}
	}
	var lead []int
	for i, c := range counts {
		if c == top {
			lead = append(lead, i)
		}
	}
	return lead
}
