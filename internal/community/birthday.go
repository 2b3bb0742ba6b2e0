package community

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/huddlebot/huddle/internal/platform"
	"github.com/huddlebot/huddle/internal/store"
)

// DefaultBirthdaySchedule runs the sweep every morning at 09:00.
const DefaultBirthdaySchedule = "0 9 * * *"

// BirthdaySweep posts a greeting for roster members whose birthday is
// today. It is registered as a daily cron job by the serve command.
type BirthdaySweep struct {
	store   *store.Store
	msgr    platform.Messenger
	channel string
	now     func() time.Time
}

// NewBirthdaySweep wires the sweep against the announcement channel.
func NewBirthdaySweep(s *store.Store, msgr platform.Messenger, channel string) *BirthdaySweep {
	return &BirthdaySweep{store: s, msgr: msgr, channel: channel, now: time.Now}
}

// Run posts one greeting covering everyone celebrating today. A day
// with no birthdays posts nothing.
func (b *BirthdaySweep) Run(ctx context.Context) error {
	if b.channel == "" {
		return nil
	}

	dayMonth := b.now().Format("02.01") // matches the imported DD.MM.YYYY sheet
	members, err := b.store.ListBirthdays(ctx, dayMonth)
	if err != nil {
		return fmt.Errorf("birthday sweep: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	mentions := make([]string, len(members))
	for i, m := range members {
		mentions[i] = fmt.Sprintf("<@%s>", m.MemberID)
	}
	msg := fmt.Sprintf("Happy birthday %s! Have a wonderful day!", strings.Join(mentions, ", "))
	if err := b.msgr.PostMessage(ctx, b.channel, msg); err != nil {
		return fmt.Errorf("birthday sweep: post: %w", err)
	}

	slog.Info("birthday greetings posted", "count", len(members))
	return nil
}
