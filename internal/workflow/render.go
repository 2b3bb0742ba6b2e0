package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/huddlebot/huddle/internal/instance"
)

// User-facing text lives here so every surface renders consistently
// and the exact output is pinned by golden tests.

// FallbackGreeting opens a match when the LLM collaborator is missing
// or fails.
const FallbackGreeting = "Welcome! You two have been matched for a short break - say hi and enjoy the chat."

// MatchClosingMessage is posted to the group when its time is up.
const MatchClosingMessage = "Time's up - this conversation has ended. See you at the next match!"

// RenderMatchOpening combines the greeting with the auto-close notice.
func RenderMatchOpening(greeting string, duration time.Duration) string {
	return fmt.Sprintf("%s\n\n_This channel closes automatically in %s._", greeting, formatDuration(duration))
}

// RenderMatchReport builds the operator-channel summary report.
func RenderMatchReport(m *instance.Match, summary string) string {
	var b strings.Builder
	b.WriteString("*Match report*\n")
	fmt.Fprintf(&b, "Channel: %s\n", m.ChannelID)
	fmt.Fprintf(&b, "Participants: <@%s> & <@%s>\n", m.ParticipantA, m.ParticipantB)
	fmt.Fprintf(&b, "Summary: %s", summary)
	return b.String()
}

// RenderPollPrompt builds the poll announcement with one selectable
// control per supplied option - exactly the options given, no more.
func RenderPollPrompt(p *instance.Poll, duration time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Poll:* %s\n", p.Topic)
	for i, opt := range p.Options {
		fmt.Fprintf(&b, "  [%d] %s\n", i+1, opt)
	}
	if p.AllowMultiple {
		b.WriteString("_Multiple choices allowed._ ")
	}
	fmt.Fprintf(&b, "_Voting closes in %s._", formatDuration(duration))
	return b.String()
}

// RenderPollResults builds the closing announcement. Tied leaders are
// all reported; no arbitrary tie-break.
func RenderPollResults(p *instance.Poll, counts []int, winners []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Poll closed:* %s\n", p.Topic)
	for i, opt := range p.Options {
		fmt.Fprintf(&b, "  %s - %s\n", opt, voteCount(counts[i]))
	}
	switch {
	case len(winners) == 1:
		fmt.Fprintf(&b, "Winner: *%s*", p.Options[winners[0]])
	default:
		labels := make([]string, len(winners))
		for i, w := range winners {
			labels[i] = p.Options[w]
		}
		fmt.Fprintf(&b, "Tie between: *%s*", strings.Join(labels, "*, *"))
	}
	return b.String()
}

// RenderEvaluationResult builds the resolution announcement.
func RenderEvaluationResult(e *instance.Evaluation) string {
	return fmt.Sprintf("*Evaluation resolved* for %s: %s true / %s false.",
		e.SubjectRef, voteCount(e.TrueVotes), voteCount(e.FalseVotes))
}

// VoteMessage builds the caller-facing reply for one cast-vote
// attempt, distinguishing accepted / changed / rejected outcomes.
func VoteMessage(p *instance.Poll, res instance.VoteResult, optionIndex int) string {
	switch {
	case res.Accepted && res.Changed:
		return fmt.Sprintf("Your vote moved from %q to %q.", p.Options[res.Previous], p.Options[optionIndex])
	case res.Accepted:
		return fmt.Sprintf("Vote recorded for %q.", p.Options[optionIndex])
	case res.Reason == instance.ReasonPollClosed:
		return "This poll has already closed - your vote was not counted."
	case res.Reason == instance.ReasonInvalidOption:
		return fmt.Sprintf("That option doesn't exist - pick between 1 and %d.", len(p.Options))
	default:
		return "Your vote could not be recorded."
	}
}

// voteCount pluralizes a vote count.
func voteCount(n int) string {
	if n == 1 {
		return "1 vote"
	}
	return fmt.Sprintf("%d votes", n)
}

// formatDuration renders durations the way people read them:
// "5 minutes", "2 hours", "90 seconds".
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
