package workflow

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/huddlebot/huddle/internal/instance"
)

// Job is a finalize routine invoked with the instance id at or after
// its deadline. Jobs must be idempotent: the same id may be delivered
// by a live timer and again by the recovery sweep.
type Job func(ctx context.Context, id string) error

// DueScanner is the slice of the store the scheduler needs for the
// recovery scan.
type DueScanner interface {
	ListDueForClose(ctx context.Context, kind instance.Kind, now time.Time) ([]instance.Due, error)
	ListActiveWithDeadline(ctx context.Context, kind instance.Kind, now time.Time) ([]instance.Due, error)
}

// Finalizer binds one workflow kind to its close routine.
type Finalizer struct {
	Kind  instance.Kind
	Close Job

	// Rearm controls whether RecoverOnStartup re-registers live timers
	// for this kind's future deadlines. Matches and polls re-arm;
	// evaluations are long-lived and rely on the sweep alone, one
	// timer per instance would be wasteful.
	Rearm bool
}

// Scheduler fires one-shot jobs at wall-clock instants and runs the
// recovery scan that guarantees eventual finalization across restarts.
//
// A single background goroutine drives timer firing; due jobs are
// launched on their own goroutines so a slow close routine cannot
// delay other instances' deadlines. The periodic sweep runs on a cron
// cadence independent of any per-instance timer.
type Scheduler struct {
	scanner    DueScanner
	sweepEvery time.Duration

	mu        sync.Mutex
	pending   pendingQueue
	scheduled map[string]bool // ids with a registered one-shot
	started   bool

	// finalizers is ordered by registration; the recovery scan visits
	// kinds in that order, which keeps recovery deterministic.
	finalizers []Finalizer

	wake chan struct{} // coalesced signal: pending changed
	cron *cron.Cron

	now func() time.Time // injectable for tests
}

// NewScheduler creates a scheduler over the given store scanner with
// the given sweep cadence.
func NewScheduler(scanner DueScanner, sweepEvery time.Duration) *Scheduler {
	return &Scheduler{
		scanner:    scanner,
		sweepEvery: sweepEvery,
		scheduled:  make(map[string]bool),
		wake:       make(chan struct{}, 1),
		cron:       cron.New(),
		now:        time.Now,
	}
}

// RegisterFinalizer registers a kind's close routine for the recovery
// scan and sweep. Must be called before Start/RecoverOnStartup.
func (s *Scheduler) RegisterFinalizer(f Finalizer) {
	s.finalizers = append(s.finalizers, f)
}

// ScheduleOnce registers exactly one future invocation of job(id) at
// fireAt. A second registration for the same id before it fires is
// ignored. Thread-safe.
func (s *Scheduler) ScheduleOnce(id string, fireAt time.Time, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduled[id] {
		return
	}
	s.scheduled[id] = true
	heap.Push(&s.pending, &timerEntry{id: id, fireAt: fireAt, job: job})

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// AddCronJob registers a periodic job on the scheduler's cron runner,
// e.g. a daily community sweep. Must be called before Start.
func (s *Scheduler) AddCronJob(spec string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("register cron job %q: %w", spec, err)
	}
	return nil
}

// Start begins the timer loop and the periodic recovery sweep. The
// loop runs until ctx is cancelled. Returns an error if already
// started.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}
	s.started = true
	s.mu.Unlock()

	if s.sweepEvery > 0 {
		_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.sweepEvery), func() {
			s.sweep(ctx)
		})
		if err != nil {
			return fmt.Errorf("register sweep: %w", err)
		}
	}
	s.cron.Start()

	go s.run(ctx)
	slog.Info("scheduler started", "sweep_every", s.sweepEvery)
	return nil
}

// Stop halts the periodic sweep. The timer loop exits with its context.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	slog.Info("scheduler stopped")
}

// RecoverOnStartup finalizes, synchronously, every instance whose
// deadline elapsed while the process was down, then re-arms live
// timers for instances whose deadline is still ahead. Call on boot,
// before accepting new events.
//
// Individual close failures are logged and do not abort the scan; a
// failed instance stays non-terminal and the next sweep retries it.
func (s *Scheduler) RecoverOnStartup(ctx context.Context) error {
	now := s.now()
	for _, f := range s.finalizers {
		due, err := s.scanner.ListDueForClose(ctx, f.Kind, now)
		if err != nil {
			return fmt.Errorf("recovery scan %s: %w", f.Kind, err)
		}
		for _, d := range due {
			slog.Info("recovering missed deadline",
				"kind", f.Kind,
				"id", d.ID,
				"deadline_at", d.DeadlineAt,
			)
			if err := f.Close(ctx, d.ID); err != nil {
				slog.Error("recovery close failed",
					"kind", f.Kind,
					"id", d.ID,
					"error", err,
				)
			}
		}

		if !f.Rearm {
			continue
		}
		ahead, err := s.scanner.ListActiveWithDeadline(ctx, f.Kind, now)
		if err != nil {
			return fmt.Errorf("re-arm scan %s: %w", f.Kind, err)
		}
		for _, d := range ahead {
			s.ScheduleOnce(d.ID, d.DeadlineAt, f.Close)
		}
		if len(ahead) > 0 {
			slog.Info("re-armed live timers", "kind", f.Kind, "count", len(ahead))
		}
	}
	return nil
}

// sweep is the periodic recovery pass. Identical queries to
// RecoverOnStartup but errors never abort the cadence; whatever the
// sweep could not finalize stays due for the next pass.
func (s *Scheduler) sweep(ctx context.Context) {
	now := s.now()
	for _, f := range s.finalizers {
		due, err := s.scanner.ListDueForClose(ctx, f.Kind, now)
		if err != nil {
			slog.Error("sweep scan failed", "kind", f.Kind, "error", err)
			continue
		}
		for _, d := range due {
			if err := f.Close(ctx, d.ID); err != nil {
				slog.Error("sweep close failed", "kind", f.Kind, "id", d.ID, "error", err)
			}
		}
	}
}

// run is the single timer loop. It sleeps until the earliest pending
// deadline, pops everything due, and launches each job on its own
// goroutine - nothing here blocks on collaborator calls.
func (s *Scheduler) run(ctx context.Context) {
	// Idle cap; a wake signal cuts any wait short.
	const idleWait = time.Hour

	for {
		s.mu.Lock()
		wait := idleWait
		var due []*timerEntry
		for s.pending.Len() > 0 {
			next := s.pending[0]
			remaining := next.fireAt.Sub(s.now())
			if remaining > 0 {
				wait = remaining
				break
			}
			heap.Pop(&s.pending)
			delete(s.scheduled, next.id)
			due = append(due, next)
		}
		s.mu.Unlock()

		for _, e := range due {
			go s.fire(ctx, e)
		}
		if len(due) > 0 {
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			slog.Info("scheduler loop stopping: context cancelled")
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// fire invokes one due job. Failures (including panics) are logged and
// contained - a misbehaving close routine must never take down the
// timer loop or sibling jobs.
func (s *Scheduler) fire(ctx context.Context, e *timerEntry) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduled job panicked", "id", e.id, "panic", r)
		}
	}()

	if err := e.job(ctx, e.id); err != nil {
		slog.Error("scheduled close failed", "id", e.id, "error", err)
	}
}

// timerEntry is one pending one-shot.
type timerEntry struct {
	id     string
	fireAt time.Time
	job    Job
}

// pendingQueue is a min-heap on fireAt.
type pendingQueue []*timerEntry

func (q pendingQueue) Len() int           { return len(q) }
func (q pendingQueue) Less(i, j int) bool { return q[i].fireAt.Before(q[j].fireAt) }
func (q pendingQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *pendingQueue) Push(x any)        { *q = append(*q, x.(*timerEntry)) }
func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}
