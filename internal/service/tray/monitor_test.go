package tray

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/gentle-alert/internal/clock"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

func testSession(t *testing.T, started time.Time) alert.Session {
	t.Helper()

	appearance := alert.DefaultAppearance()
	appearance.ExpansionSeconds = 100
	appearance.Text = "Stretch"

	rule := alert.NewRule("Stretch", alert.Daily(alert.NewTimeOfDay(9, 0)), appearance, started)

	return *alert.NewSession(rule, started)
}

func (m *Monitor) current(ruleID string) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.overlays[ruleID]
	if !ok {
		return 0, false
	}

	return o.bar.Current(), true
}

// TestMonitor_FollowsTransitions adds, updates and drops bars on transitions.
func TestMonitor_FollowsTransitions(t *testing.T) {
	t.Parallel()

	var (
		started = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
		fake    = clock.NewFake(started.Add(25 * time.Second))
		monitor = NewMonitor(io.Discard, fake)
		session = testSession(t, started)
	)

	defer monitor.Close()

	monitor.Seed([]alert.Session{session})
	require.Equal(t, 1, monitor.Len())

	current, ok := monitor.current(session.RuleID)
	require.True(t, ok)
	require.Equal(t, int64(250), current)

	fake.Advance(25 * time.Second)
	monitor.Refresh()

	current, _ = monitor.current(session.RuleID)
	require.Equal(t, int64(500), current)

	delayed := session
	delayed.State = alert.StateDelayed
	delayed.DelayUntil = fake.Now().Add(10 * time.Minute)

	monitor.Apply(alert.Event{Session: delayed, Previous: alert.StateExpanding, Cause: alert.CauseCommand})
	require.Equal(t, 1, monitor.Len())

	current, _ = monitor.current(session.RuleID)
	require.Zero(t, current)

	stopped := delayed
	stopped.State = alert.StateStopped

	monitor.Apply(alert.Event{Session: stopped, Previous: alert.StateDelayed, Cause: alert.CauseCommand})
	require.Zero(t, monitor.Len())
}

// fakeSource replays fixed sessions and events.
type fakeSource struct {
	// sessions are returned by ListSessions.
	sessions []alert.Session
	// events are replayed by Watch.
	events []alert.Event
	// err fails ListSessions.
	err error
}

func (f *fakeSource) ListSessions(context.Context) ([]alert.Session, error) {
	return f.sessions, f.err
}

func (f *fakeSource) Watch(_ context.Context, fn func(alert.Event) error) error {
	for _, ev := range f.events {
		if err := fn(ev); err != nil {
			return err
		}
	}

	return nil
}

// TestFollow seeds from the session list and applies the stream.
func TestFollow(t *testing.T) {
	t.Parallel()

	var (
		started = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)
		fake    = clock.NewFake(started)
		monitor = NewMonitor(io.Discard, fake)
		first   = testSession(t, started)
		second  = testSession(t, started)
	)

	defer monitor.Close()

	dismissed := first
	dismissed.State = alert.StateDismissed

	src := &fakeSource{
		sessions: []alert.Session{first},
		events: []alert.Event{
			{Session: second, Cause: alert.CauseScheduled},
			{Session: dismissed, Previous: alert.StateHeld, Cause: alert.CauseTimer},
		},
	}

	require.NoError(t, Follow(context.Background(), src, monitor, time.Hour))
	require.Equal(t, 1, monitor.Len())

	_, ok := monitor.current(second.RuleID)
	require.True(t, ok)

	src.err = errors.New("daemon is gone")
	require.ErrorIs(t, Follow(context.Background(), src, monitor, time.Hour), src.err)
}
