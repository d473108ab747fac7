package alert

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state of an overlay session.
type State string

const (
	// StateExpanding grows the overlay from its start size to full coverage.
	StateExpanding State = "expanding"
	// StateHeld keeps the overlay at full coverage.
	StateHeld State = "held"
	// StateDismissed ends the session after the hold elapsed.
	StateDismissed State = "dismissed"
	// StateDelayed hides the overlay until the delay elapses.
	StateDelayed State = "delayed"
	// StateStopped ends the session on user request.
	StateStopped State = "stopped"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDismissed || s == StateStopped
}

// Visible reports whether the overlay is on screen.
func (s State) Visible() bool {
	return s == StateExpanding || s == StateHeld
}

var (
	// ErrInvalidTransition is returned when a command does not apply to the current state.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrInvalidDelay is returned for a non-positive delay.
	ErrInvalidDelay = errors.New("delay must be positive")
)

// Session is one firing of a rule. Progress is derived from StartedAt and the
// supplied clock reading; nothing is accumulated between ticks.
type Session struct {
	// ID identifies this firing.
	ID string `json:"id"`
	// RuleID links back to the rule for lookup only.
	RuleID string `json:"rule_id"`
	// Text is the overlay text captured at fire time.
	Text string `json:"text,omitempty"`
	// Appearance is copied from the rule at fire time.
	Appearance Appearance `json:"appearance"`
	// State is the current lifecycle state.
	State State `json:"state"`
	// StartedAt is the start of the current expanding phase.
	StartedAt time.Time `json:"started_at"`
	// DelayUntil is set while the session is delayed.
	DelayUntil time.Time `json:"delay_until,omitzero"`
	// Fires counts entries into the expanding state.
	Fires int `json:"fires"`
	// UpdatedAt is the time of the last transition.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession starts a session for rule in the expanding state.
func NewSession(rule *Rule, now time.Time) *Session {
	return &Session{
		ID:         uuid.NewString(),
		RuleID:     rule.ID,
		Text:       rule.DisplayText(),
		Appearance: rule.Appearance,
		State:      StateExpanding,
		StartedAt:  now,
		Fires:      1,
		UpdatedAt:  now,
	}
}

// Progress returns the expansion fraction in [0, 1]. Held sessions are fully
// expanded; hidden or finished sessions report zero.
func (s *Session) Progress(now time.Time) float64 {
	switch s.State {
	case StateHeld:
		return 1
	case StateExpanding:
	default:
		return 0
	}

	expansion := s.Appearance.Expansion()
	if expansion <= 0 {
		return 1
	}

	elapsed := now.Sub(s.StartedAt)

	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= expansion:
		return 1
	default:
		return float64(elapsed) / float64(expansion)
	}
}

// Size interpolates the overlay edge between the start size and full.
func (s *Session) Size(now time.Time, full int) int {
	start := s.Appearance.StartSize
	if full <= start {
		return full
	}

	return start + int(float64(full-start)*s.Progress(now))
}

// Transition is one timer-driven state change.
type Transition struct {
	// State is the state entered.
	State State
	// At is when the state was due, which precedes now after a clock jump.
	At time.Time
}

// Advance applies the timer-driven transitions due at now and returns them
// in order. A large clock jump can cross several states at once.
func (s *Session) Advance(now time.Time) []Transition {
	var entered []Transition

	for {
		next, at, ok := s.due(now)
		if !ok {
			return entered
		}

		if next == StateExpanding {
			s.StartedAt = now
			s.DelayUntil = time.Time{}
			s.Fires++
		}

		s.State = next
		s.UpdatedAt = at
		entered = append(entered, Transition{State: next, At: at})
	}
}

// due reports the next automatic transition if it is due at now.
func (s *Session) due(now time.Time) (State, time.Time, bool) {
	switch s.State {
	case StateExpanding:
		heldAt := s.StartedAt.Add(s.Appearance.Expansion())
		if !now.Before(heldAt) {
			return StateHeld, heldAt, true
		}
	case StateHeld:
		dismissAt := s.StartedAt.Add(s.Appearance.Lifetime())
		if !now.Before(dismissAt) {
			return StateDismissed, dismissAt, true
		}
	case StateDelayed:
		if !now.Before(s.DelayUntil) {
			return StateExpanding, now, true
		}
	case StateDismissed, StateStopped:
	}

	return "", time.Time{}, false
}

// Delay hides a visible session until now+d.
func (s *Session) Delay(now time.Time, d time.Duration) error {
	if d <= 0 {
		return ErrInvalidDelay
	}

	if !s.State.Visible() {
		return fmt.Errorf("delay a %s session: %w", s.State, ErrInvalidTransition)
	}

	s.State = StateDelayed
	s.DelayUntil = now.Add(d)
	s.UpdatedAt = now

	return nil
}

// Stop ends a live session. Stopping a delayed session cancels its re-arm.
func (s *Session) Stop(now time.Time) error {
	if s.State.Terminal() {
		return fmt.Errorf("stop a %s session: %w", s.State, ErrInvalidTransition)
	}

	s.State = StateStopped
	s.DelayUntil = time.Time{}
	s.UpdatedAt = now

	return nil
}

// Clone returns a copy safe to hand to other goroutines.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}
