package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/huddlebot/huddle/internal/instance"
	"github.com/huddlebot/huddle/internal/platform"
	"github.com/huddlebot/huddle/internal/store"
)

// EvaluationService runs the deadline-gated peer-evaluation lifecycle:
// binary verdicts accumulate until the deadline, then resolve.
//
// Evaluations are long-lived (hours or days), so no per-instance timer
// is armed; the periodic recovery sweep is the only resolution trigger.
type EvaluationService struct {
	store *store.Store
	msgr  platform.Messenger
	now   func() time.Time
}

// NewEvaluationService wires the evaluation lifecycle.
func NewEvaluationService(s *store.Store, msgr platform.Messenger) *EvaluationService {
	return &EvaluationService{store: s, msgr: msgr, now: time.Now}
}

// Finalizer returns the scheduler registration for evaluations.
// Rearm is false: resolution rides the sweep, never a live timer.
func (e *EvaluationService) Finalizer() Finalizer {
	return Finalizer{Kind: instance.KindEvaluation, Close: e.Resolve, Rearm: false}
}

// Start opens an evaluation for a subject in its dedicated channel,
// resolving at the given deadline.
func (e *EvaluationService) Start(ctx context.Context, subjectRef, channelID string, deadline time.Time) (*instance.Evaluation, error) {
	now := e.now().UTC()
	deadline = deadline.UTC()
	eval := &instance.Evaluation{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Status:     instance.StatusEvaluating,
		SubjectRef: subjectRef,
		ChannelID:  channelID,
		DeadlineAt: &deadline,
		CreatedAt:  now,
	}
	if err := e.store.CreateEvaluation(ctx, eval); err != nil {
		return nil, fmt.Errorf("start evaluation: %w", err)
	}

	slog.Info("evaluation started",
		"evaluation", eval.ID,
		"subject", subjectRef,
		"channel", channelID,
		"deadline_at", deadline,
	)
	return eval, nil
}

// RecordVerdict counts one true/false verdict. The increment is an
// atomic read-modify-write in the store, so simultaneous verdicts are
// all counted. A verdict after resolution fails with
// EVALUATION_RESOLVED.
func (e *EvaluationService) RecordVerdict(ctx context.Context, id string, verdict bool) error {
	counted, err := e.store.IncrementVerdict(ctx, id, verdict)
	if err != nil {
		return fmt.Errorf("record verdict: %w", err)
	}
	if counted {
		slog.Info("verdict recorded", "evaluation", id, "verdict", verdict)
		return nil
	}

	// Zero rows: either the instance is terminal or it never existed.
	if _, err := e.store.GetEvaluation(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return NewNotFound(id)
		}
		return fmt.Errorf("record verdict: %w", err)
	}
	return NewEvaluationResolved(id)
}

// ByChannel finds the evaluation bound to a channel.
func (e *EvaluationService) ByChannel(ctx context.Context, channelID string) (*instance.Evaluation, error) {
	eval, err := e.store.GetEvaluationByChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNotFound(channelID)
		}
		return nil, fmt.Errorf("evaluation by channel: %w", err)
	}
	return eval, nil
}

// Resolve finalizes an evaluation and reports the final counts in its
// channel. Idempotent: only the invocation that claims the terminal
// transition announces.
func (e *EvaluationService) Resolve(ctx context.Context, id string) error {
	eval, err := e.store.GetEvaluation(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve evaluation: %w", err)
	}
	if instance.Terminal(eval.Status) {
		return nil
	}

	// Claim first: once terminal, IncrementVerdict stops counting, so
	// the counts read afterwards are final.
	claimed, err := e.store.CloseInstance(ctx, instance.KindEvaluation, id, e.now(), nil)
	if err != nil {
		return fmt.Errorf("resolve evaluation: %w", err)
	}
	if !claimed {
		return nil
	}

	final, err := e.store.GetEvaluation(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve evaluation: reread: %w", err)
	}

	if err := e.msgr.PostMessage(ctx, final.ChannelID, RenderEvaluationResult(final)); err != nil {
		slog.Error("evaluation announcement failed", "evaluation", id, "channel", final.ChannelID, "error", err)
	}

	slog.Info("evaluation resolved",
		"evaluation", id,
		"true_votes", final.TrueVotes,
		"false_votes", final.FalseVotes,
	)
	return nil
}
