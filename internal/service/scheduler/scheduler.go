package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/oshokin/gentle-alert/internal/clock"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/store"
)

const (
	// DefaultPollInterval is how often the loop scans the store.
	DefaultPollInterval = time.Second

	// defaultQueueSize is the command queue length.
	defaultQueueSize = 32
)

// Notifier is the rendering collaborator. It is called from the loop
// goroutine once per session transition and must not block.
type Notifier interface {
	OnStateChanged(ctx context.Context, ev alert.Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev alert.Event)

// OnStateChanged calls f.
func (f NotifierFunc) OnStateChanged(ctx context.Context, ev alert.Event) {
	f(ctx, ev)
}

// Notifiers broadcasts to several notifiers in order.
type Notifiers []Notifier

// OnStateChanged calls every notifier.
func (n Notifiers) OnStateChanged(ctx context.Context, ev alert.Event) {
	for _, notifier := range n {
		notifier.OnStateChanged(ctx, ev)
	}
}

// Options configures a Scheduler.
type Options struct {
	// Store is the rule source of truth. Required.
	Store *store.Store
	// Clock defaults to the system clock.
	Clock clock.Clock
	// Notifier receives every session transition. Optional.
	Notifier Notifier
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// ErrStopped is returned by commands sent after the loop exited.
var ErrStopped = errors.New("scheduler stopped")

// Scheduler owns the session registry and the loop driving it.
type Scheduler struct {
	// store is the rule set polled every tick.
	store *store.Store
	// clock supplies "now" for every decision.
	clock clock.Clock
	// notifier receives session transitions.
	notifier Notifier
	// interval is the polling period.
	interval time.Duration
	// sessions holds live sessions keyed by rule id.
	sessions *registry
	// commands is the queue consumed by the loop.
	commands chan command
	// done is closed when Run returns.
	done chan struct{}
}

// New creates a scheduler. Call Run to start the loop.
func New(opts Options) *Scheduler {
	s := &Scheduler{
		store:    opts.Store,
		clock:    opts.Clock,
		notifier: opts.Notifier,
		interval: opts.PollInterval,
		sessions: newRegistry(),
		commands: make(chan command, defaultQueueSize),
		done:     make(chan struct{}),
	}

	if s.clock == nil {
		s.clock = clock.Real{}
	}

	if s.notifier == nil {
		s.notifier = NotifierFunc(func(context.Context, alert.Event) {})
	}

	if s.interval <= 0 {
		s.interval = DefaultPollInterval
	}

	return s
}

// Run drives the loop until ctx is canceled. It must be called once.
func (s *Scheduler) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "scheduler")

	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger.InfoKV(ctx, "Scheduler started", "poll_interval", s.interval.String(), "rules", s.store.Len())

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.InfoKV(ctx, "Scheduler stopped", "live_sessions", s.sessions.len())

			return nil
		case <-ticker.C:
			s.tick(ctx)
		case cmd := <-s.commands:
			s.apply(ctx, cmd)
		}
	}
}

// Sessions returns snapshots of every live session.
func (s *Scheduler) Sessions() []alert.Session {
	return s.sessions.snapshot()
}

// tick advances sessions and fires due rules at the current clock reading.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock.Now()

	s.advance(ctx, now)
	s.fireDue(ctx, now)
}

// advance applies timer transitions to every live session, re-arms elapsed
// delays and drops finished sessions.
func (s *Scheduler) advance(ctx context.Context, now time.Time) {
	for _, ruleID := range s.sessions.ruleIDs() {
		var (
			entered  []alert.Transition
			previous alert.State
			snapshot alert.Session
		)

		s.sessions.mutate(ruleID, func(session *alert.Session) {
			previous = session.State
			entered = session.Advance(now)
			snapshot = *session.Clone()
		})

		for _, transition := range entered {
			ev := snapshot
			ev.State = transition.State
			ev.UpdatedAt = transition.At

			s.notify(ctx, alert.Event{Session: ev, Previous: previous, Cause: alert.CauseTimer, At: transition.At})

			previous = transition.State
		}

		if snapshot.State.Terminal() {
			s.sessions.remove(ruleID)
		}
	}
}

// fireDue starts a session for every due rule without a live one.
func (s *Scheduler) fireDue(ctx context.Context, now time.Time) {
	scan := s.store.ListDue(now, s.sessions.has)

	for _, failure := range scan.Failed {
		logger.ErrorKV(ctx, "Skipping rule that cannot fire", "rule_id", failure.RuleID, "error", failure.Err)
	}

	for _, ruleID := range scan.Spent {
		s.disable(ctx, ruleID, "One-time rule already passed, disabling")
	}

	for _, due := range scan.Due {
		s.start(ctx, due.Rule, now, alert.CauseScheduled)

		if err := s.store.MarkFired(due.Rule.ID, now); err != nil {
			logger.WarnKV(ctx, "Unable to record fire time", "rule_id", due.Rule.ID, "error", err)

			continue
		}

		logger.InfoKV(ctx, "Alert fired",
			"rule_id", due.Rule.ID,
			"label", due.Rule.Label,
			"occurrence", due.At,
		)

		if !due.Rule.Schedule.Repeating() {
			s.disable(ctx, due.Rule.ID, "One-time rule fired, disabling")
		}
	}
}

// start creates a session for rule and announces it.
func (s *Scheduler) start(ctx context.Context, rule *alert.Rule, now time.Time, cause alert.Cause) {
	session := alert.NewSession(rule, now)
	s.sessions.put(session)

	s.notify(ctx, alert.Event{Session: *session.Clone(), Cause: cause, At: now})
}

func (s *Scheduler) disable(ctx context.Context, ruleID, message string) {
	if _, err := s.store.SetEnabled(ruleID, false, s.clock.Now()); err != nil {
		logger.WarnKV(ctx, "Unable to disable rule", "rule_id", ruleID, "error", err)

		return
	}

	logger.InfoKV(ctx, message, "rule_id", ruleID)
}

func (s *Scheduler) notify(ctx context.Context, ev alert.Event) {
	logger.DebugKV(ctx, "Session transition",
		"rule_id", ev.Session.RuleID,
		"session_id", ev.Session.ID,
		"from", ev.Previous,
		"to", ev.Session.State,
		"cause", ev.Cause,
	)

	s.notifier.OnStateChanged(ctx, ev)
}
