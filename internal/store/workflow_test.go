package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlebot/huddle/internal/instance"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestMatch(id string, deadline *time.Time) *instance.Match {
	return &instance.Match{
		ID:           id,
		ChannelID:    "C-" + id,
		ParticipantA: "U1",
		ParticipantB: "U2",
		DeadlineAt:   deadline,
		CreatedAt:    time.Now().UTC(),
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCreateMatch_Roundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	deadline := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
	require.NoError(t, s.CreateMatch(ctx, newTestMatch("m1", &deadline)))

	got, err := s.GetMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, instance.StatusActive, got.Status)
	assert.Equal(t, "U1", got.ParticipantA)
	assert.Equal(t, "U2", got.ParticipantB)
	require.NotNil(t, got.DeadlineAt)
	assert.True(t, got.DeadlineAt.Equal(deadline))
	assert.Nil(t, got.ClosedAt)
}

func TestGetMatch_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetMatch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePoll_OptionsRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &instance.Poll{
		ID:        "p1",
		ChannelID: "C1",
		Topic:     "lunch?",
		Options:   instance.OptionList{"pizza", "sushi", "salad"},
		CreatedBy: "U1",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.CreatePoll(ctx, p))

	got, err := s.GetPoll(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, instance.OptionList{"pizza", "sushi", "salad"}, got.Options)
	assert.False(t, got.AllowMultiple)
}

func TestUpdate_FieldMerge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMatch(ctx, newTestMatch("m1", nil)))

	// Two updates to disjoint fields; neither clobbers the other.
	require.NoError(t, s.Update(ctx, instance.KindMatch, "m1", map[string]any{
		"summary": "talked about go",
	}))
	newDeadline := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.Update(ctx, instance.KindMatch, "m1", map[string]any{
		"deadline_at": newDeadline,
	}))

	got, err := s.GetMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "talked about go", got.Summary)
	require.NotNil(t, got.DeadlineAt)
	assert.True(t, got.DeadlineAt.Equal(newDeadline))
}

func TestUpdate_RejectsLifecycleColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMatch(ctx, newTestMatch("m1", nil)))

	err := s.Update(ctx, instance.KindMatch, "m1", map[string]any{
		"status": instance.StatusClosed,
	})
	assert.Error(t, err)

	got, err := s.GetMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusActive, got.Status)
}

func TestUpdate_NotFound(t *testing.T) {
	s := openTestStore(t)

	err := s.Update(context.Background(), instance.KindMatch, "missing", map[string]any{
		"summary": "x",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDueForClose(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateMatch(ctx, newTestMatch("past", timePtr(now.Add(-time.Minute)))))
	require.NoError(t, s.CreateMatch(ctx, newTestMatch("future", timePtr(now.Add(time.Hour)))))
	require.NoError(t, s.CreateMatch(ctx, newTestMatch("done", timePtr(now.Add(-2*time.Hour)))))
	claimed, err := s.CloseInstance(ctx, instance.KindMatch, "done", now, nil)
	require.NoError(t, err)
	require.True(t, claimed)

	due, err := s.ListDueForClose(ctx, instance.KindMatch, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "past", due[0].ID)
}

func TestListActiveWithDeadline(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateMatch(ctx, newTestMatch("past", timePtr(now.Add(-time.Minute)))))
	require.NoError(t, s.CreateMatch(ctx, newTestMatch("soon", timePtr(now.Add(time.Minute)))))
	require.NoError(t, s.CreateMatch(ctx, newTestMatch("later", timePtr(now.Add(time.Hour)))))

	ahead, err := s.ListActiveWithDeadline(ctx, instance.KindMatch, now)
	require.NoError(t, err)
	require.Len(t, ahead, 2)
	assert.Equal(t, "soon", ahead[0].ID)
	assert.Equal(t, "later", ahead[1].ID)
}

func TestCloseInstance_SingleClaim(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateMatch(ctx, newTestMatch("m1", timePtr(now))))

	claimed, err := s.CloseInstance(ctx, instance.KindMatch, "m1", now, map[string]any{
		"summary": "wrapped up",
	})
	require.NoError(t, err)
	assert.True(t, claimed)

	// Second close attempt matches zero rows.
	claimed, err = s.CloseInstance(ctx, instance.KindMatch, "m1", now, nil)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := s.GetMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusClosed, got.Status)
	assert.Equal(t, "wrapped up", got.Summary)
	require.NotNil(t, got.ClosedAt)
}

func TestCloseInstance_ConcurrentOneClaim(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateMatch(ctx, newTestMatch("m1", timePtr(now))))

	const attempts = 10
	var wg sync.WaitGroup
	claims := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.CloseInstance(ctx, instance.KindMatch, "m1", now, nil)
			if err != nil {
				t.Error(err)
				return
			}
			claims <- claimed
		}()
	}
	wg.Wait()
	close(claims)

	won := 0
	for c := range claims {
		if c {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one closer must observe the claim")
}

func TestIncrementVerdict_ConcurrentCountsExact(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateEvaluation(ctx, &instance.Evaluation{
		ID:         "e1",
		SubjectRef: "application-42",
		ChannelID:  "C-eval",
		CreatedAt:  time.Now().UTC(),
	}))

	verdicts := []bool{true, true, true, false}
	var wg sync.WaitGroup
	for _, v := range verdicts {
		wg.Add(1)
		go func(verdict bool) {
			defer wg.Done()
			counted, err := s.IncrementVerdict(ctx, "e1", verdict)
			if err != nil {
				t.Error(err)
			} else if !counted {
				t.Error("verdict on evaluating instance not counted")
			}
		}(v)
	}
	wg.Wait()

	got, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TrueVotes)
	assert.Equal(t, 1, got.FalseVotes)
}

func TestIncrementVerdict_AfterResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.CreateEvaluation(ctx, &instance.Evaluation{
		ID:        "e1",
		ChannelID: "C-eval",
		CreatedAt: now,
	}))
	claimed, err := s.CloseInstance(ctx, instance.KindEvaluation, "e1", now, nil)
	require.NoError(t, err)
	require.True(t, claimed)

	counted, err := s.IncrementVerdict(ctx, "e1", true)
	require.NoError(t, err)
	assert.False(t, counted)

	got, err := s.GetEvaluation(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, instance.StatusResolved, got.Status)
	assert.Equal(t, 0, got.TrueVotes)
}

func TestGetEvaluationByChannel_NewestWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.CreateEvaluation(ctx, &instance.Evaluation{
		ID: "old", ChannelID: "C-eval", CreatedAt: base.Add(-time.Hour),
	}))
	require.NoError(t, s.CreateEvaluation(ctx, &instance.Evaluation{
		ID: "new", ChannelID: "C-eval", CreatedAt: base,
	}))

	got, err := s.GetEvaluationByChannel(ctx, "C-eval")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
}
