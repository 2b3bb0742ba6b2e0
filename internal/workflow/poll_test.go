package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlebot/huddle/internal/instance"
	"github.com/huddlebot/huddle/internal/store"
	"github.com/huddlebot/huddle/internal/testutil"
)

func newTestPollService(t *testing.T, msgr *testutil.FakeMessenger) (*PollService, *store.Store) {
	t.Helper()
	st := openTestStore(t)
	return NewPollService(st, NewScheduler(st, 0), msgr), st
}

func startLunchPoll(t *testing.T, svc *PollService) *instance.Poll {
	t.Helper()
	poll, err := svc.Start(context.Background(), "C1", "lunch?",
		[]string{"pizza", "sushi", "salad"}, "U0", false, time.Hour)
	require.NoError(t, err)
	return poll
}

func TestPollStart_TooFewOptions(t *testing.T) {
	svc, _ := newTestPollService(t, testutil.NewFakeMessenger())

	_, err := svc.Start(context.Background(), "C1", "yes?", []string{"yes"}, "U0", false, time.Hour)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidPoll))
}

func TestPollStart_PostsPrompt(t *testing.T) {
	msgr := testutil.NewFakeMessenger()
	svc, _ := newTestPollService(t, msgr)

	startLunchPoll(t, svc)

	posts := msgr.Posts("C1")
	require.Len(t, posts, 1)
	assert.Contains(t, posts[0], "*Poll:* lunch?")
	assert.Contains(t, posts[0], "[1] pizza")
	assert.Contains(t, posts[0], "[3] salad")
	assert.Contains(t, posts[0], "Voting closes in 1 hour")
}

func TestPollLifecycle_VoteChangeAndClose(t *testing.T) {
	msgr := testutil.NewFakeMessenger()
	svc, st := newTestPollService(t, msgr)
	ctx := context.Background()
	poll := startLunchPoll(t, svc)

	// U1 votes sushi; U2 votes pizza, then changes to sushi.
	reply, err := svc.CastVote(ctx, poll.ID, "U1", 1)
	require.NoError(t, err)
	assert.True(t, reply.Accepted)

	reply, err = svc.CastVote(ctx, poll.ID, "U2", 0)
	require.NoError(t, err)
	assert.True(t, reply.Accepted)

	reply, err = svc.CastVote(ctx, poll.ID, "U2", 1)
	require.NoError(t, err)
	assert.True(t, reply.Accepted)
	assert.True(t, reply.Changed)
	assert.Contains(t, reply.Message, `from "pizza" to "sushi"`)

	require.NoError(t, svc.Close(ctx, poll.ID))

	// The supplanted pizza vote is gone from the final tally.
	tally, err := st.Tally(ctx, poll.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2}, tally)

	posts := msgr.Posts("C1")
	require.Len(t, posts, 2)
	assert.Contains(t, posts[1], "pizza - 0 votes")
	assert.Contains(t, posts[1], "sushi - 2 votes")
	assert.Contains(t, posts[1], "Winner: *sushi*")

	// A vote after the deadline is rejected, not an error.
	reply, err = svc.CastVote(ctx, poll.ID, "U3", 0)
	require.NoError(t, err)
	assert.False(t, reply.Accepted)
	assert.Equal(t, instance.ReasonPollClosed, reply.Reason)
	assert.Contains(t, reply.Message, "already closed")
}

func TestPollCastVote_InvalidOptionMessage(t *testing.T) {
	msgr := testutil.NewFakeMessenger()
	svc, _ := newTestPollService(t, msgr)
	poll := startLunchPoll(t, svc)

	reply, err := svc.CastVote(context.Background(), poll.ID, "U1", 7)
	require.NoError(t, err)
	assert.False(t, reply.Accepted)
	assert.Equal(t, instance.ReasonInvalidOption, reply.Reason)
	assert.Contains(t, reply.Message, "pick between 1 and 3")
}

func TestPollClose_TieReportsAllLeaders(t *testing.T) {
	msgr := testutil.NewFakeMessenger()
	svc, _ := newTestPollService(t, msgr)
	ctx := context.Background()
	poll := startLunchPoll(t, svc)

	_, err := svc.CastVote(ctx, poll.ID, "U1", 0)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, poll.ID, "U2", 1)
	require.NoError(t, err)

	require.NoError(t, svc.Close(ctx, poll.ID))

	posts := msgr.Posts("C1")
	require.Len(t, posts, 2)
	assert.Contains(t, posts[1], "Tie between: *pizza*, *sushi*")
}

func TestPollClose_Idempotent(t *testing.T) {
	msgr := testutil.NewFakeMessenger()
	svc, _ := newTestPollService(t, msgr)
	ctx := context.Background()
	poll := startLunchPoll(t, svc)

	require.NoError(t, svc.Close(ctx, poll.ID))
	require.NoError(t, svc.Close(ctx, poll.ID))

	// Prompt plus exactly one results announcement.
	assert.Len(t, msgr.Posts("C1"), 2)
}

func TestLeaders(t *testing.T) {
	assert.Equal(t, []int{1}, leaders([]int{0, 2, 1}))
	assert.Equal(t, []int{0, 1}, leaders([]int{1, 1, 0}))
	assert.Equal(t, []int{0, 1, 2}, leaders([]int{0, 0, 0}), "no votes ties every option")
}
