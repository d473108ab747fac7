package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/gentle-alert/internal/api/grpc/control"
	"github.com/oshokin/gentle-alert/internal/clock"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
	"github.com/oshokin/gentle-alert/internal/logger"
	"github.com/oshokin/gentle-alert/internal/recurrence"
	"github.com/oshokin/gentle-alert/internal/repository/rules"
	"github.com/oshokin/gentle-alert/internal/service/events"
	"github.com/oshokin/gentle-alert/internal/service/scheduler"
	"github.com/oshokin/gentle-alert/internal/store"
	"github.com/oshokin/gentle-alert/internal/version"
)

// service implements the control and renderer APIs on top of the store,
// the scheduler and the repository.
type service struct {
	// store is the rule source of truth.
	store *store.Store
	// repo persists the rule set.
	repo rules.Repository
	// scheduler owns the live sessions.
	scheduler *scheduler.Scheduler
	// hub fans session transitions out to watchers.
	hub *events.Hub
	// clock stamps new rules.
	clock clock.Clock
	// defaults is the appearance of rules created without one.
	defaults alert.Appearance
	// delayPresets are reported to the tray.
	delayPresets []time.Duration
	// storage describes the repository for status output.
	storage string
	// startedAt is when the daemon started.
	startedAt time.Time
	// shutdown cancels the daemon context.
	shutdown context.CancelFunc

	// saveMu serializes saves.
	saveMu sync.Mutex
	// savedRevision is the store revision last written.
	savedRevision uint64
}

// ListRules returns every rule with its next occurrence.
func (s *service) ListRules(_ context.Context) []control.RuleView {
	var (
		now   = s.clock.Now()
		all   = s.store.List()
		views = make([]control.RuleView, 0, len(all))
	)

	for _, rule := range all {
		view := control.RuleView{Rule: rule}

		if rule.Enabled {
			next, err := recurrence.Next(rule.Schedule, rule.Anchor().In(now.Location()))
			if err == nil {
				view.NextFire = &next
			}
		}

		views = append(views, view)
	}

	return views
}

// GetRule returns one rule.
func (s *service) GetRule(_ context.Context, id string) (*alert.Rule, error) {
	return s.store.Get(id)
}

// CreateRule stores a new rule. The id and creation time are assigned here
// and an empty appearance is replaced by the configured defaults.
func (s *service) CreateRule(ctx context.Context, rule *alert.Rule) (*alert.Rule, error) {
	candidate := rule.Clone()

	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}

	if candidate.Appearance == (alert.Appearance{}) {
		candidate.Appearance = s.defaults
	}

	candidate.CreatedAt = s.clock.Now()

	created, err := s.store.Create(candidate)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Rule created", "rule_id", created.ID, "schedule", created.Schedule.String())

	if err = s.persist(ctx); err != nil {
		return nil, err
	}

	return created, nil
}

// UpdateRule replaces the editable fields of a rule. A live overlay keeps
// the appearance it started with.
func (s *service) UpdateRule(ctx context.Context, rule *alert.Rule) (*alert.Rule, error) {
	updated, err := s.store.Update(rule, s.clock.Now())
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Rule updated", "rule_id", updated.ID, "schedule", updated.Schedule.String())

	if err = s.persist(ctx); err != nil {
		return nil, err
	}

	return updated, nil
}

// SetRuleEnabled toggles a rule without touching its live overlay.
func (s *service) SetRuleEnabled(ctx context.Context, id string, enabled bool) (*alert.Rule, error) {
	rule, err := s.store.SetEnabled(id, enabled, s.clock.Now())
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Rule toggled", "rule_id", id, "enabled", enabled)

	if err = s.persist(ctx); err != nil {
		return nil, err
	}

	return rule, nil
}

// DeleteRule removes a rule and cancels its live overlay.
func (s *service) DeleteRule(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}

	if _, err := s.scheduler.CancelRule(ctx, id); err != nil && !errors.Is(err, scheduler.ErrStopped) {
		logger.WarnKV(ctx, "Unable to cancel overlay of deleted rule", "rule_id", id, "error", err)
	}

	logger.InfoKV(ctx, "Rule deleted", "rule_id", id)

	return s.persist(ctx)
}

// Sessions returns the live overlays.
func (s *service) Sessions(_ context.Context) []alert.Session {
	return s.scheduler.Sessions()
}

// Stop stops the overlay of ruleID.
func (s *service) Stop(ctx context.Context, ruleID string) (bool, error) {
	return s.scheduler.Stop(ctx, ruleID)
}

// Delay hides the overlay of ruleID for d.
func (s *service) Delay(ctx context.Context, ruleID string, d time.Duration) (bool, error) {
	return s.scheduler.Delay(ctx, ruleID, d)
}

// StopAll stops every overlay.
func (s *service) StopAll(ctx context.Context) (int, error) {
	return s.scheduler.StopAll(ctx)
}

// DelayAll hides every visible overlay for d.
func (s *service) DelayAll(ctx context.Context, d time.Duration) (int, error) {
	return s.scheduler.DelayAll(ctx, d)
}

// TestFire shows the overlay of ruleID right away.
func (s *service) TestFire(ctx context.Context, ruleID string) (bool, error) {
	return s.scheduler.TestFire(ctx, ruleID)
}

// Status describes the daemon.
func (s *service) Status(_ context.Context) *control.Status {
	return &control.Status{
		Version:      version.Short(),
		StartedAt:    s.startedAt,
		Rules:        s.store.Len(),
		Sessions:     len(s.scheduler.Sessions()),
		Storage:      s.storage,
		DelayPresets: s.delayPresets,
		Defaults:     s.defaults,
	}
}

// Subscribe registers a watcher of session transitions.
func (s *service) Subscribe() (<-chan alert.Event, func()) {
	return s.hub.Subscribe()
}

// Shutdown asks the daemon to exit.
func (s *service) Shutdown(ctx context.Context) {
	logger.Info(ctx, "Shutdown requested")

	s.shutdown()
}

// persist saves the rule set when it changed since the last save.
func (s *service) persist(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	revision := s.store.Revision()
	if revision == s.savedRevision {
		return nil
	}

	if err := s.repo.Save(ctx, s.store.List()); err != nil {
		logger.ErrorKV(ctx, "Failed to persist rules", "error", err)

		return fmt.Errorf("persist rules: %w", err)
	}

	s.savedRevision = revision

	logger.DebugKV(ctx, "Rules persisted", "revision", revision, "rules", s.store.Len())

	return nil
}

// syncLoop persists changes made by the scheduler (fire times, auto-disabled
// one-time rules) every interval, and once more on shutdown.
func (s *service) syncLoop(ctx context.Context, interval time.Duration) error {
	ctx = logger.WithName(ctx, "syncer")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			return s.persist(finalCtx)
		case <-ticker.C:
			// A failed save is retried on the next tick.
			_ = s.persist(ctx)
		}
	}
}
