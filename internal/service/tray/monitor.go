// Package tray renders live overlays in a terminal as progress bars, one bar
// per session, filled by the expansion progress.
package tray

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/oshokin/gentle-alert/internal/clock"
	"github.com/oshokin/gentle-alert/internal/domain/alert"
)

const (
	// DefaultRefresh is how often bars follow the clock.
	DefaultRefresh = 200 * time.Millisecond

	// barTotal is the bar resolution.
	barTotal = 1000
	// barWidth is the bar width in cells.
	barWidth = 48
)

// Source is the daemon side of a monitor.
type Source interface {
	ListSessions(ctx context.Context) ([]alert.Session, error)
	Watch(ctx context.Context, fn func(alert.Event) error) error
}

// Monitor keeps one bar per live session.
type Monitor struct {
	// progress is the bar container.
	progress *mpb.Progress
	// clock drives the expansion progress.
	clock clock.Clock

	// mu guards overlays.
	mu sync.Mutex
	// overlays maps rule ids to their bars.
	overlays map[string]*overlay
}

type overlay struct {
	// session is the last known snapshot.
	session alert.Session
	// bar renders the session.
	bar *mpb.Bar
}

// NewMonitor creates a monitor writing to out. A nil clock reads the system clock.
func NewMonitor(out io.Writer, clk clock.Clock) *Monitor {
	if clk == nil {
		clk = clock.Real{}
	}

	return &Monitor{
		progress: mpb.New(
			mpb.WithOutput(out),
			mpb.WithWidth(barWidth),
			mpb.WithRefreshRate(DefaultRefresh),
		),
		clock:    clk,
		overlays: make(map[string]*overlay),
	}
}

// Follow seeds the monitor with the current sessions, then applies every
// transition until ctx is canceled or the daemon ends the stream.
func Follow(ctx context.Context, src Source, m *Monitor, refresh time.Duration) error {
	sessions, err := src.ListSessions(ctx)
	if err != nil {
		return err
	}

	m.Seed(sessions)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go m.Run(ctx, refresh)

	return src.Watch(ctx, func(ev alert.Event) error {
		m.Apply(ev)

		return nil
	})
}

// Seed adds a bar for every live session.
func (m *Monitor) Seed(sessions []alert.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	for _, session := range sessions {
		m.replace(session, now)
	}
}

// Apply renders one transition. A session's bar is rebuilt on every
// transition and dropped once the session ends.
func (m *Monitor) Apply(ev alert.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.replace(ev.Session, m.clock.Now())
}

// Refresh moves every bar to the current progress.
func (m *Monitor) Refresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	for _, o := range m.overlays {
		o.update(now)
	}
}

// Run refreshes the bars every interval until ctx is canceled.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefresh
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Refresh()
		}
	}
}

// Len returns the number of rendered sessions.
func (m *Monitor) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.overlays)
}

// Close removes every bar and waits for the final render.
func (m *Monitor) Close() {
	m.mu.Lock()

	for ruleID, o := range m.overlays {
		o.bar.Abort(true)
		delete(m.overlays, ruleID)
	}

	m.mu.Unlock()

	m.progress.Wait()
}

func (m *Monitor) replace(session alert.Session, now time.Time) {
	if old, ok := m.overlays[session.RuleID]; ok {
		old.bar.Abort(true)
		delete(m.overlays, session.RuleID)
	}

	if session.State.Terminal() {
		return
	}

	name := title(session)

	o := &overlay{
		session: session,
		bar: m.progress.AddBar(barTotal,
			mpb.PrependDecorators(
				decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
				decor.Name(stateLabel(session), decor.WCSyncSpaceR),
			),
			mpb.AppendDecorators(decor.Percentage(decor.WC{W: 5})),
		),
	}

	o.update(now)
	m.overlays[session.RuleID] = o
}

func (o *overlay) update(now time.Time) {
	if !o.session.State.Visible() {
		return
	}

	o.bar.SetCurrent(int64(o.session.Progress(now) * barTotal))
}

func title(s alert.Session) string {
	if s.Text != "" {
		return s.Text
	}

	return s.RuleID
}

func stateLabel(s alert.Session) string {
	if s.State == alert.StateDelayed {
		return "delayed until " + s.DelayUntil.Format(time.TimeOnly)
	}

	return string(s.State)
}
