package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
)

// commandKind enumerates the commands the loop accepts.
type commandKind int

const (
	commandStop commandKind = iota
	commandDelay
	commandStopAll
	commandDelayAll
	commandTestFire
	commandCancelRule
)

// String names the command for logs.
func (k commandKind) String() string {
	switch k {
	case commandStop:
		return "stop"
	case commandDelay:
		return "delay"
	case commandStopAll:
		return "stop_all"
	case commandDelayAll:
		return "delay_all"
	case commandTestFire:
		return "test_fire"
	case commandCancelRule:
		return "cancel_rule"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// command is one queued request for the loop.
type command struct {
	// kind selects the operation.
	kind commandKind
	// ruleID targets a single rule's session.
	ruleID string
	// delay is the hide duration of delay commands.
	delay time.Duration
	// reply receives exactly one result.
	reply chan commandResult
}

// commandResult is the loop's answer to a command.
type commandResult struct {
	// affected counts sessions the command changed.
	affected int
	// err is a failure that prevented the command.
	err error
}

// Stop stops the live session of ruleID. It reports false when there is none.
func (s *Scheduler) Stop(ctx context.Context, ruleID string) (bool, error) {
	res, err := s.submit(ctx, command{kind: commandStop, ruleID: ruleID})

	return res.affected > 0, err
}

// Delay hides the visible session of ruleID for d. It reports false when no
// visible session exists.
func (s *Scheduler) Delay(ctx context.Context, ruleID string, d time.Duration) (bool, error) {
	if d <= 0 {
		return false, alert.ErrInvalidDelay
	}

	res, err := s.submit(ctx, command{kind: commandDelay, ruleID: ruleID, delay: d})

	return res.affected > 0, err
}

// StopAll stops every live session and returns how many were stopped.
func (s *Scheduler) StopAll(ctx context.Context) (int, error) {
	res, err := s.submit(ctx, command{kind: commandStopAll})

	return res.affected, err
}

// DelayAll hides every visible session for d and returns how many were delayed.
func (s *Scheduler) DelayAll(ctx context.Context, d time.Duration) (int, error) {
	if d <= 0 {
		return 0, alert.ErrInvalidDelay
	}

	res, err := s.submit(ctx, command{kind: commandDelayAll, delay: d})

	return res.affected, err
}

// TestFire starts a session for ruleID regardless of its schedule. It reports
// false when the rule already has a live session. The fire time of the rule
// is left untouched.
func (s *Scheduler) TestFire(ctx context.Context, ruleID string) (bool, error) {
	res, err := s.submit(ctx, command{kind: commandTestFire, ruleID: ruleID})

	return res.affected > 0, err
}

// CancelRule stops the session of a rule that is being deleted.
func (s *Scheduler) CancelRule(ctx context.Context, ruleID string) (bool, error) {
	res, err := s.submit(ctx, command{kind: commandCancelRule, ruleID: ruleID})

	return res.affected > 0, err
}

// submit enqueues cmd and waits for the reply, bounded by ctx.
func (s *Scheduler) submit(ctx context.Context, cmd command) (commandResult, error) {
	cmd.reply = make(chan commandResult, 1)

	select {
	case s.commands <- cmd:
	case <-s.done:
		return commandResult{}, ErrStopped
	case <-ctx.Done():
		return commandResult{}, fmt.Errorf("enqueue %s: %w", cmd.kind, ctx.Err())
	}

	select {
	case res := <-cmd.reply:
		return res, res.err
	case <-s.done:
		return commandResult{}, ErrStopped
	case <-ctx.Done():
		return commandResult{}, fmt.Errorf("await %s: %w", cmd.kind, ctx.Err())
	}
}

// apply executes cmd on the loop goroutine.
func (s *Scheduler) apply(ctx context.Context, cmd command) {
	now := s.clock.Now()

	var res commandResult

	switch cmd.kind {
	case commandStop:
		res.affected = s.stop(ctx, cmd.ruleID, now, alert.CauseCommand)
	case commandCancelRule:
		res.affected = s.stop(ctx, cmd.ruleID, now, alert.CauseRuleDeleted)
	case commandDelay:
		res.affected = s.delay(ctx, cmd.ruleID, now, cmd.delay)
	case commandStopAll:
		for _, ruleID := range s.sessions.ruleIDs() {
			res.affected += s.stop(ctx, ruleID, now, alert.CauseCommand)
		}
	case commandDelayAll:
		for _, ruleID := range s.sessions.ruleIDs() {
			res.affected += s.delay(ctx, ruleID, now, cmd.delay)
		}
	case commandTestFire:
		res = s.testFire(ctx, cmd.ruleID, now)
	}

	logger.DebugKV(ctx, "Command applied", "command", cmd.kind, "rule_id", cmd.ruleID, "affected", res.affected)

	cmd.reply <- res
}

// stop ends the session of ruleID and returns 1 if one existed.
func (s *Scheduler) stop(ctx context.Context, ruleID string, now time.Time, cause alert.Cause) int {
	var (
		previous alert.State
		snapshot alert.Session
		err      error
	)

	found := s.sessions.mutate(ruleID, func(session *alert.Session) {
		previous = session.State
		err = session.Stop(now)
		snapshot = *session.Clone()
	})
	if !found {
		return 0
	}

	s.sessions.remove(ruleID)

	if err != nil {
		return 0
	}

	s.notify(ctx, alert.Event{Session: snapshot, Previous: previous, Cause: cause, At: now})
	logger.InfoKV(ctx, "Alert stopped", "rule_id", ruleID, "cause", cause)

	return 1
}

// delay hides the visible session of ruleID and returns 1 on success.
func (s *Scheduler) delay(ctx context.Context, ruleID string, now time.Time, d time.Duration) int {
	var (
		previous alert.State
		snapshot alert.Session
		err      error
	)

	found := s.sessions.mutate(ruleID, func(session *alert.Session) {
		previous = session.State
		err = session.Delay(now, d)
		snapshot = *session.Clone()
	})
	if !found || err != nil {
		return 0
	}

	s.notify(ctx, alert.Event{Session: snapshot, Previous: previous, Cause: alert.CauseCommand, At: now})
	logger.InfoKV(ctx, "Alert delayed", "rule_id", ruleID, "until", snapshot.DelayUntil)

	return 1
}

func (s *Scheduler) testFire(ctx context.Context, ruleID string, now time.Time) commandResult {
	rule, err := s.store.Get(ruleID)
	if err != nil {
		return commandResult{err: err}
	}

	if s.sessions.has(ruleID) {
		logger.InfoKV(ctx, "Test fire skipped, alert already active", "rule_id", ruleID)

		return commandResult{}
	}

	s.start(ctx, rule, now, alert.CauseTest)
	logger.InfoKV(ctx, "Alert test fired", "rule_id", ruleID, "label", rule.Label)

	return commandResult{affected: 1}
}
