package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlebot/huddle/internal/instance"
)

func createTestPoll(t *testing.T, s *Store, id string, allowMultiple bool) {
	t.Helper()
	require.NoError(t, s.CreatePoll(context.Background(), &instance.Poll{
		ID:            id,
		ChannelID:     "C1",
		Topic:         "lunch?",
		Options:       instance.OptionList{"pizza", "sushi", "salad"},
		AllowMultiple: allowMultiple,
		CreatedBy:     "U0",
		CreatedAt:     time.Now().UTC(),
	}))
}

func TestCastVote_Accepted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPoll(t, s, "p1", false)

	res, err := s.CastVote(ctx, "p1", "U1", 0)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.Changed)

	counts, err := s.Tally(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1}, counts)
}

func TestCastVote_SupplantsOnSingleChoice(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPoll(t, s, "p1", false)

	// U1 settles on sushi; U2 flips from pizza to sushi before close.
	_, err := s.CastVote(ctx, "p1", "U1", 1)
	require.NoError(t, err)
	_, err = s.CastVote(ctx, "p1", "U2", 0)
	require.NoError(t, err)

	res, err := s.CastVote(ctx, "p1", "U2", 1)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.True(t, res.Changed)
	assert.Equal(t, 0, res.Previous)

	counts, err := s.Tally(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2}, counts, "the supplanted vote must not linger")
}

func TestCastVote_SameOptionNoOp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPoll(t, s, "p1", false)

	_, err := s.CastVote(ctx, "p1", "U1", 2)
	require.NoError(t, err)
	res, err := s.CastVote(ctx, "p1", "U1", 2)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.False(t, res.Changed)

	counts, err := s.Tally(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{2: 1}, counts)
}

func TestCastVote_AllowMultiple(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPoll(t, s, "p1", true)

	_, err := s.CastVote(ctx, "p1", "U1", 0)
	require.NoError(t, err)
	_, err = s.CastVote(ctx, "p1", "U1", 1)
	require.NoError(t, err)
	// Duplicate of an already-held option is a no-op, not an error.
	res, err := s.CastVote(ctx, "p1", "U1", 0)
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	counts, err := s.Tally(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1, 1: 1}, counts)
}

func TestCastVote_InvalidOption(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPoll(t, s, "p1", false)

	res, err := s.CastVote(ctx, "p1", "U1", 3)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, instance.ReasonInvalidOption, res.Reason)

	res, err = s.CastVote(ctx, "p1", "U1", -1)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, instance.ReasonInvalidOption, res.Reason)
}

func TestCastVote_AfterCloseRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	createTestPoll(t, s, "p1", false)

	_, err := s.CastVote(ctx, "p1", "U1", 0)
	require.NoError(t, err)

	claimed, err := s.CloseInstance(ctx, instance.KindPoll, "p1", time.Now().UTC(), nil)
	require.NoError(t, err)
	require.True(t, claimed)

	res, err := s.CastVote(ctx, "p1", "U2", 1)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Equal(t, instance.ReasonPollClosed, res.Reason)

	// The tally is frozen at close.
	counts, err := s.Tally(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1}, counts)
}

func TestCastVote_PollNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.CastVote(context.Background(), "missing", "U1", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
